package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/comment-export-api/internal/api"
	"github.com/comment-export-api/internal/archive"
	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/render"
	"github.com/comment-export-api/internal/repository"
	"github.com/comment-export-api/internal/service"
	"github.com/comment-export-api/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New()
	log.Info().Msg("Starting Comment Export API server...")

	// Load configuration
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load comment template")
	}

	store, err := archive.NewStore(cfg.Export.OutputDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare export directory")
	}

	// Initialize services
	services := service.NewServices(repos, renderer, store, cfg, log)

	// Start export janitor
	go services.Export.StartJanitor(context.Background())
	log.Info().Dur("retention", cfg.Export.Retention).Msg("Export janitor started")

	// Initialize router
	router := api.NewRouter(services, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	services.Export.StopJanitor()

	// Event streams end once their runs are cancelled, so stop runs first
	if err := services.Export.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Export runs did not stop in time")
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
