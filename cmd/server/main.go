package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fieldclock/server/internal/config"
	"github.com/fieldclock/server/internal/handlers"
	custommw "github.com/fieldclock/server/internal/middleware"
	"github.com/fieldclock/server/internal/observability"
	"github.com/fieldclock/server/internal/repository"
	"github.com/fieldclock/server/internal/services"
)

const serviceVersion = "1.0.0"

// @title FieldClock Server API
// @version 1.0
// @description Idempotent clock-in/out admission API for offline-first field devices
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("fieldclock-server", serviceVersion))
	if err != nil {
		log.Printf("Telemetry initialization failed, continuing without: %v", err)
	}

	// Initialize database
	var db *sql.DB
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
	} else {
		log.Println("Using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
	}
	defer db.Close()

	// All repository traffic goes through the traced wrapper
	tracedDB, err := observability.NewTraceDB(db)
	if err != nil {
		log.Fatalf("Failed to initialize database tracing: %v", err)
	}

	// Repositories
	workerRepo := repository.NewWorkerRepository(tracedDB)
	siteRepo := repository.NewJobSiteRepository(tracedDB)
	entryRepo := repository.NewTimeEntryRepository(tracedDB)
	commitRepo := repository.NewCommitRecordRepository(tracedDB)

	// Metrics
	clockMetrics, err := observability.NewClockMetrics()
	if err != nil {
		log.Printf("Failed to create clock metrics: %v", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Printf("Failed to create HTTP metrics: %v", err)
	}

	// Services
	eventIDService := services.NewEventIDService()
	replayGuard := services.NewReplayGuard(eventIDService, cfg.Replay.TTL())
	geofenceService := services.NewGeofenceService()
	authzService := services.NewAuthorizationService(siteRepo)
	admissionService := services.NewAdmissionService(
		eventIDService, replayGuard, geofenceService, authzService, siteRepo, commitRepo)

	hub := services.NewWebSocketHub()
	go hub.Run()

	maintenance := services.NewMaintenanceService(
		commitRepo,
		time.Duration(cfg.Ledger.RetentionHours)*time.Hour,
		time.Duration(cfg.Ledger.SweepIntervalHours)*time.Hour,
		clockMetrics,
	)
	if cfg.Ledger.SweepEnabled {
		maintenance.Start()
		defer maintenance.Stop()
	}

	// Handlers
	clockHandler := handlers.NewClockHandler(admissionService, hub, clockMetrics)
	entryHandler := handlers.NewEntryHandler(entryRepo)
	jobSiteHandler := handlers.NewJobSiteHandler(siteRepo, workerRepo)
	workerHandler := handlers.NewWorkerHandler(workerRepo)
	healthHandler := handlers.NewHealthHandler()
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("fieldclock-server"))
	if httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.WorkerAPIKeyAuth(workerRepo, cfg.Security.APIKeyHeader, []string{
		"/health",
		"/swagger/*",
	}))

	// Routes
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/version", handlers.VersionHandler)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Post("/clock", clockHandler.SubmitClockEvent)
		r.Get("/entries", entryHandler.ListEntries)
		r.Get("/entries/open", entryHandler.GetOpenEntry)
		r.Get("/jobsites", jobSiteHandler.ListJobSites)
		r.Get("/ws", wsHandler.HandleConnection)

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommw.RequireAdmin)
			r.Get("/workers", workerHandler.ListWorkers)
			r.Post("/workers", workerHandler.CreateWorker)
			r.Post("/workers/{id}/rotate-key", workerHandler.RotateAPIKey)
			r.Delete("/workers/{id}", workerHandler.DeactivateWorker)
			r.Post("/jobsites", jobSiteHandler.CreateJobSite)
			r.Put("/jobsites/{id}", jobSiteHandler.UpdateJobSite)
			r.Put("/jobsites/{id}/workers/{workerId}", jobSiteHandler.AssignWorker)
			r.Delete("/jobsites/{id}/workers/{workerId}", jobSiteHandler.UnassignWorker)
		})
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("FieldClock Server starting on %s", cfg.ServerAddress)
		log.Printf("Replay window: %s", cfg.Replay.TTL())

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}

	log.Println("Server stopped")
}
