// Package llm provides the enrichment LLM client with pluggable providers.
// The client owns the enrichment contract: prompt rendering, fence-tolerant
// JSON parsing, and a single in-place retry when a provider returns output
// that does not parse.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a provider conversation.
type Turn struct {
	Role string
	Text string
}

// Usage reports token consumption for a single provider call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the transport-level contract implemented per vendor.
type Provider interface {
	// Complete sends the conversation and returns the assistant text.
	Complete(ctx context.Context, turns []Turn) (string, Usage, error)
	// Model returns the model identity recorded in cost entries.
	Model() string
	// CostUSD prices a call from its token counts.
	CostUSD(usage Usage) float64
}

// Config selects and parameterises the provider.
type Config struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	OllamaURL       string
	OllamaModel     string
	MaxTokens       int
	RateLimitRPS    float64
}

// Client wraps a provider with the enrichment contract.
type Client struct {
	provider Provider
	logger   zerolog.Logger
}

// NewClient builds a client around an explicit provider.
func NewClient(provider Provider, logger zerolog.Logger) *Client {
	return &Client{
		provider: provider,
		logger:   logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// New builds the enrichment client for the configured provider. When the
// Anthropic provider is selected without an API key the client falls back to
// the mock provider so local runs stay usable.
func New(cfg Config, logger zerolog.Logger) *Client {
	switch cfg.Provider {
	case ProviderOllama:
		return NewClient(NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel), logger)
	case ProviderMock:
		return NewClient(NewMockProvider(), logger)
	default:
		if cfg.AnthropicAPIKey == "" {
			logger.Warn().Str(logKeyProvider, cfg.Provider).Msg("no API key configured, using mock LLM provider")

			return NewClient(NewMockProvider(), logger)
		}

		return NewClient(NewAnthropicProvider(cfg), logger)
	}
}

// Model returns the active provider's model identity.
func (c *Client) Model() string {
	return c.provider.Model()
}

// Enrich runs the enrichment prompt over one raw item and prices the spend.
// Content is truncated to maxContentChars before prompting. A malformed
// reply triggers exactly one retry that replays the bad reply as an
// assistant turn and asks for plain JSON; token usage from both calls is
// summed into the returned cost entry.
func (c *Client) Enrich(ctx context.Context, item domain.RawItem) (domain.EnrichmentResult, domain.CostLogEntry, error) {
	content := item.ContentText
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	prompt := strings.Replace(enrichmentPrompt, contentToken, content, 1)
	turns := []Turn{{Role: RoleUser, Text: prompt}}

	text, usage, err := c.provider.Complete(ctx, turns)
	if err != nil {
		return domain.EnrichmentResult{}, domain.CostLogEntry{}, fmt.Errorf("llm completion: %w", err)
	}

	total := usage

	result, err := ParseEnrichment(text)
	if err != nil {
		c.logger.Warn().Err(err).Str(logKeyItemID, item.ID).Msg("enrichment output did not parse, retrying once")

		turns = append(turns,
			Turn{Role: RoleAssistant, Text: text},
			Turn{Role: RoleUser, Text: retryNudge},
		)

		retryText, retryUsage, retryErr := c.provider.Complete(ctx, turns)
		if retryErr != nil {
			return domain.EnrichmentResult{}, domain.CostLogEntry{}, fmt.Errorf("llm retry completion: %w", retryErr)
		}

		total.InputTokens += retryUsage.InputTokens
		total.OutputTokens += retryUsage.OutputTokens

		result, err = ParseEnrichment(retryText)
		if err != nil {
			return domain.EnrichmentResult{}, domain.CostLogEntry{}, fmt.Errorf("enrichment retry: %w", err)
		}
	}

	entry := domain.CostLogEntry{
		ItemID:       item.ID,
		Model:        c.provider.Model(),
		InputTokens:  total.InputTokens,
		OutputTokens: total.OutputTokens,
		CostUSD:      c.provider.CostUSD(total),
		Timestamp:    time.Now().UTC(),
	}

	return result, entry, nil
}
