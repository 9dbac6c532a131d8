// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the retrieval service
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// PostgreSQL (knowledge-base registry and analytics logs).
	// Leave empty to run on the in-memory store.
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`

	// Qdrant
	QdrantGRPCURL string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OllamaEmbedBatchSize int    `env:"OLLAMA_EMBED_BATCH_SIZE" envDefault:"32"`

	// Auth
	AdminAPIKey string        `env:"ADMIN_API_KEY" envDefault:""`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:""`
	JWTExpiry   time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Search defaults
	DefaultStrategy string  `env:"DEFAULT_SEARCH_STRATEGY" envDefault:"auto"`
	MaxResults      int     `env:"MAX_RESULTS" envDefault:"10"`
	MinScore        float64 `env:"MIN_SCORE" envDefault:"0.7"`
	SemanticWeight  float64 `env:"SEMANTIC_WEIGHT" envDefault:"0.7"`
	FulltextWeight  float64 `env:"FULLTEXT_WEIGHT" envDefault:"0.3"`
	UseReranking    bool    `env:"USE_RERANKING" envDefault:"true"`
	UseClustering   bool    `env:"USE_CLUSTERING" envDefault:"true"`

	// Strategy selection and clustering tunables
	ClusterEps    float64 `env:"CLUSTER_EPS" envDefault:"0.3"`
	HybridMargin  float64 `env:"HYBRID_MARGIN" envDefault:"0.1"`
	HistoryWindow int     `env:"HISTORY_WINDOW" envDefault:"100"`

	// Response cache
	CacheSize int           `env:"CACHE_SIZE" envDefault:"1024"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"1h"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
