package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/chat2test/internal/agent"
	"github.com/ashureev/chat2test/internal/api"
	"github.com/ashureev/chat2test/internal/auth"
	"github.com/ashureev/chat2test/internal/chat"
	"github.com/ashureev/chat2test/internal/middleware"
	"github.com/ashureev/chat2test/internal/store"
	"github.com/ashureev/chat2test/internal/testcase"
	"github.com/ashureev/chat2test/internal/tracker"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const (
	mockPassRate          = 0.7
	rateLimiterSweepEvery = time.Minute
	shutdownTimeout       = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func serve() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "api_prefix", cfg.APIPrefix)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authSvc := auth.NewService(repo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	agentSvc := agent.NewServiceFromConfig(ctx, agent.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	defer agentSvc.Close()

	seed, err := testcase.LoadSeed()
	if err != nil {
		return fmt.Errorf("load test case seed: %w", err)
	}
	cases := testcase.NewStore(seed, testcase.NewRandomExecutor(nil, mockPassRate))
	slog.Info("Test case store seeded", "count", cases.Len())

	uploads, err := chat.NewDiskUploads(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	processor := chat.NewProcessor(repo, cases, agentSvc, uploads)
	trackerSvc := tracker.NewService(repo, cases, nil)

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	go limiter.Run(ctx, rateLimiterSweepEvery)

	// Initialize handlers.
	base := api.NewHandler(repo)
	healthHandler := api.NewHealthHandler(repo, agentSvc, cases)
	routes := api.Routes{
		Users:        api.NewUserHandler(base, authSvc),
		Projects:     api.NewProjectHandler(base),
		Chats:        api.NewChatHandler(base, processor, cases, limiter, cfg.MaxUploadBytes),
		TestCases:    api.NewTestCaseHandler(cases),
		Integrations: api.NewIntegrationHandler(trackerSvc, processor),
		Uploads:      api.NewUploadHandler(base, uploads),
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Attachments are served to the chat owner only.
	r.Mount(chat.UploadRoute, routes.UploadRouter(authSvc))

	// API routes; the router applies bearer authentication itself.
	r.Mount(cfg.APIPrefix, routes.Router(authSvc))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server.
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal.
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}
