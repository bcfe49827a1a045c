package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{"wildcard echoes origin without credentials", []string{"*"}, "https://app.example", http.MethodGet, "https://app.example", "", http.StatusTeapot},
		{"explicit origin gets credentials", []string{"https://app.example"}, "https://app.example", http.MethodGet, "https://app.example", "true", http.StatusTeapot},
		{"unknown origin", []string{"https://app.example"}, "https://evil.example", http.MethodGet, "", "", http.StatusTeapot},
		{"preflight short-circuits", []string{"*"}, "https://app.example", http.MethodOptions, "https://app.example", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()

			CORS(tt.allowed)(ok).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("allow-credentials = %q, want %q", got, tt.wantCreds)
			}
		})
	}
}
