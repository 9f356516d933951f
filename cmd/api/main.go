// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/analytics"
	"github.com/37-Inc/goose.gifts-sub000/internal/concept"
	"github.com/37-Inc/goose.gifts-sub000/internal/config"
	"github.com/37-Inc/goose.gifts-sub000/internal/handler"
	"github.com/37-Inc/goose.gifts-sub000/internal/llm"
	"github.com/37-Inc/goose.gifts-sub000/internal/middleware"
	"github.com/37-Inc/goose.gifts-sub000/internal/pipeline"
	"github.com/37-Inc/goose.gifts-sub000/internal/product"
	"github.com/37-Inc/goose.gifts-sub000/internal/search"
	"github.com/37-Inc/goose.gifts-sub000/internal/store"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "goose-gifts", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Initialize LLM client. Concept generation has no degraded mode, so a
	// missing key is a startup failure.
	var llmClient llm.Client
	var openaiClient *llm.OpenAIClient
	if cfg.OpenAIAPIKey != "" {
		openaiClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Error("failed to create OpenAI client")
			os.Exit(1)
		}
		llmClient = openaiClient
	}
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Error("failed to create Anthropic client")
			os.Exit(1)
		}
	}
	if llmClient == nil {
		log.Error("no LLM API key configured, cannot generate concepts")
		os.Exit(1)
	}

	// Initialize product sources
	amazonSource := product.NewAmazonSource(product.AmazonConfig{
		AccessKey:     cfg.AmazonAccessKey,
		SecretKey:     cfg.AmazonSecretKey,
		PartnerTag:    cfg.AmazonPartnerTag,
		Host:          cfg.AmazonHost,
		Region:        cfg.AmazonRegion,
		MultiCategory: cfg.AmazonMultiCategory,
		MaxAttempts:   cfg.RetryMaxAttempts,
	}, log)

	var activeSource product.Source = amazonSource
	if cfg.ActiveProvider == config.ProviderWebSearch {
		activeSource = product.NewWebSearchSource(cfg.SerpAPIKey, cfg.WebSearchDomain, log)
	}
	strategy := search.ForConfig(cfg, activeSource, log)

	var enricher pipeline.Enricher
	if cfg.EnrichmentEnabled {
		enricher = product.NewEnricher(amazonSource, log)
	}

	// Initialize persistence. Absence of a datastore never blocks generation.
	var bundleStore *store.Store
	if cfg.DatabaseURL != "" {
		var embedder llm.Embedder
		if openaiClient != nil {
			embedder = openaiClient.NewEmbedder(cfg.EmbeddingModel)
		}
		bundleStore, err = store.New(ctx, cfg.DatabaseURL, embedder, log)
		if err != nil {
			log.Warn("datastore unavailable, bundles will not be persisted")
			bundleStore = nil
		}
	}

	// Initialize analytics
	recorder := analytics.New(analytics.Config{
		NATSURL:   cfg.NATSURL,
		NATSToken: cfg.NATSToken,
		RedisAddr: cfg.RedisAddr,
	}, log)
	defer recorder.Close()

	// Initialize services
	generator := concept.NewGenerator(llmClient, cfg.ConceptModel, cfg.ConceptCount, log)
	selector := concept.NewSelector(llmClient, cfg.ConceptModel, log)
	seoWriter := concept.NewSEOWriter(llmClient, cfg.ConceptModel, log)

	var pipelineStore pipeline.Store
	if bundleStore != nil {
		pipelineStore = bundleStore
	}

	orchestrator := pipeline.New(
		generator,
		strategy,
		selector,
		enricher,
		pipelineStore,
		seoWriter,
		recorder,
		pipeline.Options{
			ProductsPerBundle:  cfg.ProductsPerBundle,
			SequentialConcepts: cfg.ActiveProvider == config.ProviderAmazon,
			EnrichmentEnabled:  cfg.EnrichmentEnabled,
			Timeout:            cfg.GenerationTimeout,
			ProviderName:       activeSource.Name(),
		},
		log,
	)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(func() bool { return true })
	generateHandler := handler.NewGenerateHandler(orchestrator, log)
	bundleHandler := handler.NewBundleHandler(bundleStore, recorder, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/bundles", func(r chi.Router) {
			r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
				Post("/", generateHandler.Generate)
			r.Get("/{slug}", bundleHandler.Get)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	if bundleStore != nil {
		bundleStore.Close()
	}

	log.Info("server stopped")
}
