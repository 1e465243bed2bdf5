package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gcgdocs/internal/config"
	"gcgdocs/internal/database"
	"gcgdocs/internal/database/migration"
	handlers "gcgdocs/internal/http/handler"
	"gcgdocs/internal/http/middleware"
	"gcgdocs/internal/locks"
	"gcgdocs/internal/mirror"
	"gcgdocs/internal/otel"
	"gcgdocs/internal/repository/postgres"
	"gcgdocs/internal/service"
	"gcgdocs/internal/snapshot"
	"gcgdocs/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.UTC

	ctx := context.Background()

	// Tracing first so every later component picks up the global provider
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Physical file-tree backend, constructed once and injected everywhere
	var store storage.FileStore
	switch cfg.Storage.Backend {
	case "minio":
		store, err = storage.NewMinIO(cfg.MinIO)
	default:
		store, err = storage.NewLocal(cfg.Storage.LocalRoot)
	}
	if err != nil {
		log.Fatalf("failed to initialize storage backend: %v", err)
	}

	// Shared infrastructure: advisory locks, mirror, snapshot table
	lockTable := locks.New(cfg.Locks.WaitTimeout)
	mirrorStore := mirror.NewCSV(store, "")
	writer := snapshot.NewWriter(store, "")

	// Repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(store, docRepo, mirrorStore, lockTable)
	assessSvc := service.NewAssessmentService(writer, lockTable)
	reconciler := service.NewReconciler(store, docRepo, mirrorStore, service.ReconcilePolicy{
		Purge:      cfg.Reconcile.Purge,
		PurgeGrace: cfg.Reconcile.PurgeGrace,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	// Distributed tracing spans per request
	app.Use(otelfiber.Middleware())

	// Prometheus request counters plus a /metrics scrape endpoint
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	promMw, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		log.Fatalf("failed to initialize prometheus middleware: %v", err)
	}
	app.Use(promMw.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, docSvc, assessSvc, reconciler)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
