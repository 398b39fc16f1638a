package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Moxie/internal/api/middleware"
	"Moxie/internal/api/routes"
	"Moxie/internal/config"
	"Moxie/internal/core/content"
	"Moxie/internal/core/entities"
	"Moxie/internal/core/invalidation"
	"Moxie/internal/core/likes"
	"Moxie/internal/core/media"
	"Moxie/internal/core/views"
	"Moxie/internal/db/memory"
	"Moxie/internal/db/migrations"
	postgresRepo "Moxie/internal/db/postgres"
	"Moxie/internal/metrics"
	"Moxie/internal/storage/breaker"
	"Moxie/internal/storage/memstore"
	"Moxie/internal/storage/s3"
)

// entityBackend is what the pipeline needs from an entity store
type entityBackend interface {
	entities.Store
	entities.Reader
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if cfg.IsDevelopment() && os.Getenv("JWT_SECRET") == "" {
		log.Println("WARNING: JWT_SECRET not set, using the development secret")
	}
	log.Printf("Configuration: %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting per client IP
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, 1*time.Minute)
	defer rateLimiter.Stop()
	r.Use(rateLimiter.Middleware)
	r.Use(middleware.Instrument(m))

	// Entity store
	var store entityBackend
	switch cfg.EntityStore {
	case config.StoreMemory:
		log.Println("Using in-memory entity store (data is lost on restart)")
		store = memory.New()
	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Printf("Failed to close database: %v", closeErr)
			}
		}()

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("Failed to ping database:", err)
		}
		log.Println("Connected to database")

		if err := migrations.Up(db); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		log.Println("Migrations completed successfully")

		store = postgresRepo.NewGateway(db)
	}

	// Media object storage
	var objects media.ObjectStore
	if cfg.UseS3() {
		bucket, err := s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3BucketName,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatal("Failed to create S3 client:", err)
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to ensure media bucket:", err)
		}
		log.Printf("Media stored in bucket %s at %s", cfg.S3BucketName, cfg.S3Endpoint)
		objects = breaker.Wrap(bucket, breaker.DefaultThreshold, breaker.DefaultOpenFor, logger)
	} else {
		// Retrieval tokens only need to outlive the process
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal("Failed to generate media signing secret:", err)
		}
		local := memstore.New(cfg.PublicBaseURL+"/media-store", secret)
		r.Mount("/media-store", local.Handler())
		log.Println("Using in-memory media store at /media-store")
		objects = local
	}

	// Initialize services
	mediaService := media.NewService(objects, cfg.MediaURLTTL, logger)

	registry, err := views.NewRegistry(views.NewReaderLoader(store, cfg.FeedLimit), cfg.ViewCacheTTL, cfg.ViewCacheSessions, m)
	if err != nil {
		log.Fatal("Failed to create view registry:", err)
	}
	router := invalidation.NewRouter(registry, logger, m)
	likeCoordinator := likes.NewCoordinator(store, router, logger, m)
	contentCoordinator := content.NewCoordinator(store, mediaService, router, logger, m)

	auth := middleware.NewAuthenticator([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	// Register XRPC routes
	routes.RegisterPostRoutes(r, contentCoordinator, auth)
	routes.RegisterLikeRoutes(r, likeCoordinator, registry, auth)
	routes.RegisterViewRoutes(r, registry, auth)
	routes.RegisterMediaRoutes(r, mediaService)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("Failed to write health check response: %v", err)
		}
	})

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Moxie starting on port %s", cfg.AppPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
