package api

import (
	"net/http"

	"github.com/ashureev/chat2test/internal/identity"
	"github.com/go-chi/chi/v5"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Users        *UserHandler
	Projects     *ProjectHandler
	Chats        *ChatHandler
	TestCases    *TestCaseHandler
	Integrations *IntegrationHandler
	Uploads      *UploadHandler
}

// Router builds the API router. Everything except signup and login
// requires a bearer token.
func (rt Routes) Router(verifier identity.TokenVerifier) http.Handler {
	r := chi.NewRouter()

	rt.Users.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(verifier))

		rt.Users.RegisterRoutes(r)
		rt.Projects.RegisterRoutes(r)
		rt.Chats.RegisterRoutes(r)
		rt.TestCases.RegisterRoutes(r)
		rt.Integrations.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, "not found")
	})
	return r
}

// UploadRouter builds the router mounted at the attachment prefix. Every
// request requires a bearer token for the owner of the chat.
func (rt Routes) UploadRouter(verifier identity.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(identity.Middleware(verifier))
	rt.Uploads.RegisterRoutes(r)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, "not found")
	})
	return r
}
