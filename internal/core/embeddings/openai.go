package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const openaiRateLimiterBurst = 5

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. Pointing
// BaseURL at a local inference server is the usual way to serve
// all-MiniLM-L6-v2 behind this client.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimensions  int
	rateLimiter *rate.Limiter
}

// NewOpenAIEmbedder builds an embedder from config.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}

	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), openaiRateLimiterBurst),
	}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	return Normalize(PadToTargetDimensions(resp.Data[0].Embedding, e.dimensions)), nil
}

// ModelName implements Embedder.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

var _ Embedder = (*OpenAIEmbedder)(nil)
