package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	custommiddleware "product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/storage"
	"product-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers into a chi router.
// A Redis client is created only when rate limiting is enabled.
func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, store storage.ImageStore) *Server {
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if db != nil {
		registry.MustRegister(collectors.NewDBStatsCollector(db, cfg.Database.Database))
	}

	router := newRouter(cfg, logger, db, store, redisClient, registry)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

func newRouter(cfg *config.Config, logger *zap.Logger, db *sql.DB, store storage.ImageStore, redisClient *redis.Client, registry *prometheus.Registry) chi.Router {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.NewMetrics(registry).Middleware)
	router.Use(custommiddleware.Tracing(cfg.Telemetry.ServiceName))

	router.NotFound(custommiddleware.NotFoundHandler)
	router.MethodNotAllowed(custommiddleware.MethodNotAllowedHandler)

	router.Get("/", welcome)
	router.Get("/health", healthHandler(db))
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	// Initialize services
	productService := service.NewProductService(productRepo, categoryRepo, store, logger)

	// Initialize handlers
	productHandler := transport.NewProductHandler(productService, cfg.Server.PublicBaseURL, logger)
	imageHandler := transport.NewImageHandler(store, logger)

	upload := custommiddleware.UploadMiddleware(store, cfg.Storage.MaxUploadBytes, logger)

	router.Group(func(r chi.Router) {
		if redisClient != nil {
			r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "catalog:ratelimit",
			}, logger))
		}
		productHandler.RegisterRoutes(r, upload)
	})
	imageHandler.RegisterRoutes(router)

	return router
}

func welcome(w http.ResponseWriter, r *http.Request) {
	custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the product catalog API",
		"endpoints": map[string]string{
			"products":   "/api/products",
			"categories": "/api/categories",
			"uploads":    "/uploads/{filename}",
			"health":     "/health",
			"metrics":    "/metrics",
		},
	})
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]string{"status": "down", "error": "database not configured"}
		if db != nil {
			stats = database.Health(r.Context(), db)
		}

		status := http.StatusOK
		overall := "ok"
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
			overall = "unavailable"
		}

		custommiddleware.RespondWithJSON(w, status, map[string]any{
			"status":   overall,
			"database": stats,
		})
	}
}

// Ping checks the optional Redis connection used by the rate limiter
func (s *Server) Ping(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx).Err()
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
