package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knakagawa/retrieval/internal/auth"
	"github.com/knakagawa/retrieval/internal/cache"
	"github.com/knakagawa/retrieval/internal/config"
	"github.com/knakagawa/retrieval/internal/embedder"
	"github.com/knakagawa/retrieval/internal/repository"
	"github.com/knakagawa/retrieval/internal/repository/memory"
	"github.com/knakagawa/retrieval/internal/repository/postgres"
	"github.com/knakagawa/retrieval/internal/reranker"
	"github.com/knakagawa/retrieval/internal/server"
	"github.com/knakagawa/retrieval/internal/service"
	"github.com/knakagawa/retrieval/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting retrieval service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Repositories: PostgreSQL when configured, in-memory otherwise
	var (
		kbRepo       repository.KnowledgeBaseRepository
		logRepo      repository.SearchLogRepository
		feedbackRepo repository.FeedbackRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		slog.Info("connected to PostgreSQL")

		kbRepo = postgres.NewKnowledgeBaseRepo(db)
		logRepo = postgres.NewSearchLogRepo(db)
		feedbackRepo = postgres.NewFeedbackRepo(db)
	} else {
		store := memory.NewStore(0)
		kbRepo = store.KnowledgeBases()
		logRepo = store.SearchLogs()
		feedbackRepo = store.Feedback()
		slog.Warn("no DATABASE_URL configured, using in-memory store")
	}

	// Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	slog.Info("connected to Qdrant")

	// Ollama embedder
	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:   cfg.OllamaURL,
		Model:     cfg.OllamaEmbeddingModel,
		BatchSize: cfg.OllamaEmbedBatchSize,
	})
	if err := embed.Ping(ctx); err != nil {
		slog.Warn("embedding backend not reachable at startup", "error", err)
	}
	slog.Info("initialized Ollama embedder",
		"model", cfg.OllamaEmbeddingModel, "dimension", embed.Dimension())

	// Pipeline components
	rerankSvc := reranker.NewService(reranker.NewEmbeddingScorer(embed), slog.Default())
	history := service.NewHistoryScorer(logRepo, cfg.HistoryWindow)
	selector := service.NewStrategySelector(history, cfg.HybridMargin, slog.Default())
	clusterer := service.NewClusterer(embed, cfg.ClusterEps, slog.Default())

	searchSvc := service.NewSearchService(
		embed,
		vectorStore,
		vectorStore,
		selector,
		logRepo,
		service.WithNativeHybrid(vectorStore),
		service.WithReranker(rerankSvc),
		service.WithClusterer(clusterer),
		service.WithKnowledgeBases(kbRepo),
		service.WithSearchDefaults(service.SearchDefaults{
			MaxResults:     cfg.MaxResults,
			MinScore:       cfg.MinScore,
			SemanticWeight: cfg.SemanticWeight,
			FulltextWeight: cfg.FulltextWeight,
		}),
	)
	kbSvc := service.NewKnowledgeBaseService(kbRepo, vectorStore, embed, slog.Default())
	analyticsSvc := service.NewAnalyticsService(logRepo, feedbackRepo, slog.Default())

	responseCache := cache.New(cfg.CacheSize, cfg.CacheTTL)

	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
		jwtCfg.Expiry = cfg.JWTExpiry
		jwtManager = auth.NewJWTManager(jwtCfg)
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		AdminAPIKey:    cfg.AdminAPIKey,
		JWTManager:     jwtManager,
		Search:         searchSvc,
		Knowledge:      kbSvc,
		Analytics:      analyticsSvc,
		Cache:          responseCache,
		Defaults: service.SearchRequest{
			Strategy:       cfg.DefaultStrategy,
			MaxResults:     cfg.MaxResults,
			MinScore:       cfg.MinScore,
			SemanticWeight: cfg.SemanticWeight,
			FulltextWeight: cfg.FulltextWeight,
			UseReranking:   cfg.UseReranking,
			UseClustering:  cfg.UseClustering,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.KnowledgeBaseRepository = (*postgres.KnowledgeBaseRepo)(nil)
	_ repository.SearchLogRepository     = (*postgres.SearchLogRepo)(nil)
	_ repository.FeedbackRepository      = (*postgres.FeedbackRepo)(nil)
	_ vectorstore.Store                  = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder                  = (*embedder.OllamaEmbedder)(nil)
	_ reranker.Scorer                    = (*reranker.EmbeddingScorer)(nil)
)
