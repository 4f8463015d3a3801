// Package config loads runtime configuration from the environment. Source
// lists (feeds, queries, keywords, subreddits) live in a separate YAML file
// whose path is configured here; everything else is flat env vars.
package config

import (
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DataDir       string `env:"DATA_DIR" envDefault:"./data"`
	SQLitePath    string `env:"SQLITE_PATH"`
	SourcesConfig string `env:"SOURCES_CONFIG" envDefault:"sources.yaml"`
	APIPort       int    `env:"API_PORT" envDefault:"8000"`

	// Source credentials. Which feeds, queries, and subreddits to pull is
	// sources.yaml territory; secrets stay in the environment.
	BlueskyHandle      string `env:"BLUESKY_HANDLE"`
	BlueskyAppPassword string `env:"BLUESKY_APP_PASSWORD"`
	RedditUserAgent    string `env:"REDDIT_USER_AGENT" envDefault:"amon-hen/0.1"`

	// Vector index backend.
	QdrantMode       string `env:"QDRANT_MODE" envDefault:"memory"`
	QdrantHost       string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantURL        string `env:"QDRANT_URL"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"amon_hen_items"`

	// Enrichment LLM.
	EnrichmentProvider    string  `env:"ENRICHMENT_PROVIDER" envDefault:"anthropic"`
	AnthropicAPIKey       string  `env:"ANTHROPIC_API_KEY"`
	EnrichmentModel       string  `env:"ENRICHMENT_MODEL" envDefault:"claude-haiku-4-5-20251001"`
	EnrichmentMaxTokens   int     `env:"ENRICHMENT_MAX_TOKENS" envDefault:"1024"`
	EnrichmentConcurrency int     `env:"ENRICHMENT_CONCURRENCY" envDefault:"3"`
	OllamaURL             string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel           string  `env:"OLLAMA_MODEL" envDefault:"llama3.2"`
	TrackCosts            bool    `env:"TRACK_COSTS" envDefault:"true"`
	DailyBudgetUSD        float64 `env:"DAILY_BUDGET_USD" envDefault:"2.00"`
	LLMRateLimitRPS       float64 `env:"LLM_RATE_LIMIT_RPS" envDefault:"1"`

	// Embeddings.
	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"mock"`
	EmbeddingModel    string `env:"EMBEDDING_MODEL" envDefault:"all-MiniLM-L6-v2"`
	EmbeddingDim      int    `env:"EMBEDDING_DIM" envDefault:"384"`
	EmbeddingBaseURL  string `env:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey   string `env:"EMBEDDING_API_KEY"`

	// Clustering and detection.
	MinClusterSize      int     `env:"MIN_CLUSTER_SIZE" envDefault:"5"`
	MinSamples          int     `env:"MIN_SAMPLES" envDefault:"4"`
	ClusterEpsilon      float64 `env:"CLUSTER_EPSILON" envDefault:"0.3"`
	RollingWindowDays   int     `env:"ROLLING_WINDOW_DAYS" envDefault:"30"`
	DivergenceThreshold float64 `env:"DIVERGENCE_THRESHOLD" envDefault:"0.3"`

	// Scheduler.
	IngestInterval  time.Duration `env:"INGEST_INTERVAL" envDefault:"15m"`
	ClusterInterval time.Duration `env:"CLUSTER_INTERVAL" envDefault:"2h"`
	DigestHourUTC   int           `env:"DIGEST_HOUR_UTC" envDefault:"6"`
	ArchiveHourUTC  int           `env:"ARCHIVE_HOUR_UTC" envDefault:"0"`
}

// Load reads configuration from the environment, preferring a .env file
// when present. The SQLite path defaults to a file under DataDir.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "amon_hen.db")
	}

	return cfg, nil
}
