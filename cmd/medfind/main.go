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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/config"
	dbRedis "github.com/kailas-cloud/medfind/internal/db/redis"
	"github.com/kailas-cloud/medfind/internal/domain"
	logpkg "github.com/kailas-cloud/medfind/internal/logger"
	"github.com/kailas-cloud/medfind/internal/metrics"
	"github.com/kailas-cloud/medfind/internal/repository/corpus"
	"github.com/kailas-cloud/medfind/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/medfind/internal/transport/chi"
	"github.com/kailas-cloud/medfind/internal/transport/ebay"
	openaiEmb "github.com/kailas-cloud/medfind/internal/transport/openai"
	healthuc "github.com/kailas-cloud/medfind/internal/usecase/health"
	queryuc "github.com/kailas-cloud/medfind/internal/usecase/query"
	reconcileuc "github.com/kailas-cloud/medfind/internal/usecase/reconcile"
	retrievaluc "github.com/kailas-cloud/medfind/internal/usecase/retrieval"
	"github.com/kailas-cloud/medfind/internal/version"
)

func main() {
	// Local .env for marketplace credentials; absent in deployed environments.
	_ = godotenv.Load()

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

	logger.Info("Starting medfind API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterMarketplaceMetrics()

	ctx := context.Background()

	// Optional Redis cache for embeddings. The pipeline runs without it.
	var store *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	lexicon := buildLexicon(cfg.Lexicon)

	// Embedding provider is constructed lazily on first search; decorated
	// with the KV cache when Redis is configured.
	embedder := domain.NewLazyEmbedder(func() (domain.Embedder, error) {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		if store != nil {
			return embcache.New(base, store, metrics.EmbeddingCacheTotal, logger), nil
		}
		return base, nil
	})

	// Missing corpus artifact is non-fatal: retrieval degrades to zero
	// results and every request relies on the marketplace fallback.
	idx, err := corpus.Load(cfg.Corpus.VectorsPath, cfg.Corpus.MetadataPath)
	if err != nil {
		logger.Warn("Similarity corpus unavailable, running fallback-only", zap.Error(err))
	} else {
		logger.Info("Similarity corpus loaded",
			zap.Int("rows", idx.Len()), zap.Int("dimensions", idx.Dim()))
	}

	// Pass nil interface (not typed nil pointer!) when the corpus is absent.
	// Go gotcha: (*corpus.Corpus)(nil) wrapped in CorpusSearcher != nil.
	var corpusSearcher retrievaluc.CorpusSearcher
	var corpusReader healthuc.CorpusReader
	if idx != nil {
		corpusSearcher = idx
		corpusReader = idx
	}

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}

	tokens := ebay.NewTokenSource(ebay.TokenConfig{
		OAuthURL:     cfg.Marketplace.OAuthURL,
		ClientID:     cfg.Marketplace.ClientID,
		ClientSecret: cfg.Marketplace.ClientSecret,
		RefreshToken: cfg.Marketplace.RefreshToken,
		TokenFile:    cfg.Marketplace.TokenFile,
		Timeout:      time.Duration(cfg.Marketplace.RequestTimeout) * time.Second,
	}, logger)
	marketplace := ebay.NewClient(ebay.Config{
		BrowseURL:  cfg.Marketplace.BrowseURL,
		Categories: cfg.Marketplace.Categories,
		Timeout:    time.Duration(cfg.Marketplace.RequestTimeout) * time.Second,
	}, tokens, logger)

	retriever := retrievaluc.New(corpusSearcher, embedder, lexicon, logger)
	interpreter := queryuc.New(lexicon, lexicon, logger)
	reconciler := reconcileuc.New(retriever, marketplace, lexicon, reconcileuc.Options{
		TopK:                cfg.Search.TopK,
		ScoreThreshold:      cfg.Search.ScoreThreshold,
		ConfidenceThreshold: cfg.Search.ConfidenceThreshold,
	}, logger)
	healthSvc := healthuc.New(corpusReader, cachePinger, nil)

	server := chiTransport.NewServer(interpreter, reconciler, marketplace, healthSvc, chiTransport.Limits{
		Default: cfg.Search.DefaultLimit,
		Max:     cfg.Search.MaxLimit,
	}, logger)

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

// buildLexicon applies config overrides on top of the built-in lexicon.
func buildLexicon(cfg config.LexiconConfig) domain.Lexicon {
	lex := domain.DefaultLexicon()
	if len(cfg.Keywords) > 0 {
		lex.Keywords = cfg.Keywords
	}
	if len(cfg.Signals) > 0 {
		lex.Signals = cfg.Signals
	}
	return lex
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

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
