package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/config"
	"github.com/kailas-cloud/imgdex/internal/db"
	dbMemory "github.com/kailas-cloud/imgdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/imgdex/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/imgdex/internal/db/sqlite"
	"github.com/kailas-cloud/imgdex/internal/domain/search/count"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
	"github.com/kailas-cloud/imgdex/internal/metrics"
	imagerepo "github.com/kailas-cloud/imgdex/internal/repository/image"
	"github.com/kailas-cloud/imgdex/internal/repository/querycache"
	scoperepo "github.com/kailas-cloud/imgdex/internal/repository/scope"
	chiTransport "github.com/kailas-cloud/imgdex/internal/transport/chi"
	cataloguc "github.com/kailas-cloud/imgdex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/imgdex/internal/usecase/query"
	"github.com/kailas-cloud/imgdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting imgdex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx := context.Background()
	catalog, err := openCatalog(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open image store", zap.Error(err))
	}
	defer catalog.Close()
	logger.Info("Image store ready", zap.String("driver", cfg.Database.Driver))

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterQueryMetrics()

	policy, err := count.ParsePolicy(cfg.Query.CountPolicy)
	if err != nil {
		logger.Fatal("Invalid count policy", zap.Error(err))
	}

	// Repositories and caches
	images := imagerepo.New(catalog, cfg.Database.Driver)
	scopes := scoperepo.New(catalog)
	results := querycache.NewResultCache(cfg.Cache.ResultCapacity, metrics.CacheTotal)
	pages := querycache.NewPageCache(cfg.Cache.PageCapacity, metrics.CacheTotal)

	// Use case services
	executor := queryuc.New(images, scopes, results, pages, queryuc.Config{
		LookaheadPages: cfg.Query.LookaheadPages,
		Workers:        cfg.Query.Workers,
		CountPolicy:    policy,
	}, logger)
	catalogSvc := cataloguc.New(images, scopes, executor, logger)
	healthSvc := healthuc.New(catalog, map[string]healthuc.CacheSizer{
		"result": results,
		"page":   pages,
	})

	server := chiTransport.NewServer(executor, catalogSvc, healthSvc, logger).
		WithPagination(cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openCatalog creates the image store for the configured driver and waits until it serves requests.
func openCatalog(ctx context.Context, cfg *config.DatabaseConfig) (db.Catalog, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverMemory:
		return dbMemory.NewStore(), nil

	case config.DriverSQLite:
		store, err := dbSQLite.NewStore(ctx, dbSQLite.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("sqlite not ready: %w", err)
		}
		return store, nil

	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		catalog, err := dbRedis.NewCatalog(store, dbRedis.CatalogConfig{
			Index:     cfg.Index,
			KeyPrefix: cfg.KeyPrefix,
			Ratings:   cfg.Ratings,
			Colors:    cfg.Colors,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("redis catalog: %w", err)
		}
		if err := catalog.EnsureIndex(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis index: %w", err)
		}
		return catalog, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
