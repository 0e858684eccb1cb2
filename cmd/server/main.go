package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"

	"github.com/ongbase/be-hiring-workflow/internal/client"
	"github.com/ongbase/be-hiring-workflow/internal/config"
	"github.com/ongbase/be-hiring-workflow/internal/docstore"
	"github.com/ongbase/be-hiring-workflow/internal/handler"
	"github.com/ongbase/be-hiring-workflow/internal/hiring/checklist"
	"github.com/ongbase/be-hiring-workflow/internal/hiring/scoring"
	"github.com/ongbase/be-hiring-workflow/internal/logger"
	"github.com/ongbase/be-hiring-workflow/internal/middleware"
	"github.com/ongbase/be-hiring-workflow/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Hiring Workflow Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize document store
	store, err := docstore.NewPostgres(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure document schema")
	}
	log.Info().Msg("Database connection established")

	// Screening checklist definitions
	checklists := checklist.Default()
	if cfg.Checklist.DefinitionPath != "" {
		checklists, err = checklist.LoadFile(cfg.Checklist.DefinitionPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Checklist.DefinitionPath).Msg("Failed to load checklist definition")
		}
		log.Info().Str("path", cfg.Checklist.DefinitionPath).Msg("Checklist definition loaded")
	}

	// Notification publisher (optional)
	var notifier service.Notifier
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		notifier = client.NewNotificationPublisher(nc, log.Logger)
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	}

	// Initialize services
	scores := scoring.NewAggregator(store)
	vagas := service.NewVagaWorkflow(store, notifier, log)
	candidaturas := service.NewCandidaturaWorkflow(store, checklists, scores, notifier, log)
	queries := service.NewQueryFacade(store, log)

	// Setup HTTP routes
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	httpHandler := handler.NewHTTPHandler(vagas, candidaturas, queries, log)
	httpHandler.RegisterRoutes(router)

	// Apply middleware
	var h http.Handler = router
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
