// Package embeddings turns intelligence signals into fixed-dimension unit
// vectors for the vector index. Embeddings are computed over the enrichment
// signal (summary, framing, claims), never over raw content.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ProviderName identifies an embedding provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderOllama ProviderName = "ollama"
	ProviderMock   ProviderName = "mock"
)

// Dimensions of the embedding space. Matches all-MiniLM-L6-v2 output.
const Dimensions = 384

// DefaultModel is the sentence embedding model served by default.
const DefaultModel = "all-MiniLM-L6-v2"

// ErrEmptyResponse reports a provider that returned no vector.
var ErrEmptyResponse = errors.New("empty embedding response")

// Embedder produces L2-normalised vectors with exactly Dimensions entries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// Config selects and parameterises the embedding provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
	RateLimit  int
}

// New builds the embedder for the configured provider.
func New(cfg Config, logger zerolog.Logger) (Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.Dimensions <= 0 {
		cfg.Dimensions = Dimensions
	}

	switch ProviderName(cfg.Provider) {
	case ProviderOllama:
		return NewOllamaEmbedder(cfg), nil
	case ProviderMock, "":
		logger.Warn().Msg("using deterministic mock embedder")

		return NewMockEmbedder(cfg.Dimensions), nil
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
