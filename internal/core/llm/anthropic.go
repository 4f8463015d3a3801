package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// Anthropic defaults.
const (
	defaultAnthropicModel = "claude-haiku-4-5-20251001"

	anthropicMaxTokensDefault = 1024
	anthropicRateLimiterBurst = 5
	anthropicDefaultRPS       = 1.0

	contentTypeText = "text"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	rateLimiter *rate.Limiter
}

// NewAnthropicProvider builds an Anthropic provider from config.
func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokensDefault
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = anthropicDefaultRPS
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:       model,
		maxTokens:   maxTokens,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), anthropicRateLimiterBurst),
	}
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, turns []Turn) (string, Usage, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", Usage{}, fmt.Errorf("rate limiter: %w", err)
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))

	for _, turn := range turns {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic completion: %w", err)
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	return strings.TrimSpace(messageText(resp)), usage, nil
}

// Model implements Provider.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// CostUSD implements Provider.
func (p *AnthropicProvider) CostUSD(usage Usage) float64 {
	return estimateAnthropicCost(p.model, usage.InputTokens, usage.OutputTokens)
}

// messageText concatenates the text blocks of a response.
func messageText(resp *anthropic.Message) string {
	var result strings.Builder

	for _, block := range resp.Content {
		if block.Type == contentTypeText {
			result.WriteString(block.Text)
		}
	}

	return result.String()
}

var _ Provider = (*AnthropicProvider)(nil)
