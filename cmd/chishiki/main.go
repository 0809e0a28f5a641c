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

	"github.com/kailas-cloud/chishiki/internal/config"
	"github.com/kailas-cloud/chishiki/internal/db"
	dbRedis "github.com/kailas-cloud/chishiki/internal/db/redis"
	dbSqlite "github.com/kailas-cloud/chishiki/internal/db/sqlite"
	"github.com/kailas-cloud/chishiki/internal/index"
	logpkg "github.com/kailas-cloud/chishiki/internal/logger"
	"github.com/kailas-cloud/chishiki/internal/metrics"
	"github.com/kailas-cloud/chishiki/internal/repository/chunkstore"
	"github.com/kailas-cloud/chishiki/internal/repository/oplog"
	chiTransport "github.com/kailas-cloud/chishiki/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/chishiki/internal/transport/openai"
	answeruc "github.com/kailas-cloud/chishiki/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/chishiki/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/chishiki/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/chishiki/internal/usecase/retrieval"
	"github.com/kailas-cloud/chishiki/internal/version"
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

	logger.Info("Starting chishiki API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open knowledge base storage", zap.Error(err))
	}
	defer store.Close()

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:       cfg.Generation.APIKey,
		BaseURL:      cfg.Generation.BaseURL,
		Model:        cfg.Generation.Model,
		SystemPrompt: cfg.Generation.SystemPrompt,
		Logger:       logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	idx := index.New()
	chunkRepo := chunkstore.New(store)
	opRecorder := oplog.New(store, logger)

	ingestSvc := ingestuc.New(chunkRepo, idx, embedder, opRecorder)

	// Load the persisted knowledge base into the index (or create an
	// empty one on first run).
	ctx := context.Background()
	if err := ingestSvc.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap knowledge base", zap.Error(err))
	}
	logger.Info("Knowledge base loaded",
		zap.Int("chunks", idx.Size()),
		zap.Int("dimensions", idx.Dimensions()),
	)

	searchSvc := retrievaluc.New(idx, embedder).
		WithOverfetch(cfg.Retrieval.OverfetchFactor)
	answerSvc := answeruc.New(searchSvc, generator).
		WithTopK(cfg.Retrieval.TopK).
		WithContextBudget(cfg.Retrieval.ContextBudgetBytes)
	healthSvc := healthuc.New(store, embedder)

	server := chiTransport.NewServer(answerSvc, searchSvc, ingestSvc, opRecorder, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// openStore creates the persistence backend selected by configuration.
func openStore(cfg config.Config, logger *zap.Logger) (db.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return dbSqlite.Open(dbSqlite.Config{
			Path:   cfg.Storage.Path,
			Create: true,
		})
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Storage.Addrs,
			Password:  cfg.Storage.Password,
			KeyPrefix: cfg.Storage.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.Storage.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), timeout); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Storage.Addrs))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
