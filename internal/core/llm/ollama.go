package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults.
const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
	ollamaTimeout      = 120 * time.Second
	ollamaModelPrefix  = "ollama:"
)

// OllamaProvider calls a local Ollama server. Calls are free, so usage is
// reported but never priced.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider builds an Ollama provider. Empty arguments fall back to
// the local defaults.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	if model == "" {
		model = defaultOllamaModel
	}

	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Complete implements Provider.
func (p *OllamaProvider) Complete(ctx context.Context, turns []Turn) (string, Usage, error) {
	messages := make([]ollamaMessage, len(turns))
	for i, turn := range turns {
		messages[i] = ollamaMessage{Role: turn.Role, Content: turn.Text}
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Format:   "json",
		Stream:   false,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, fmt.Errorf("ollama chat: unexpected status %d", resp.StatusCode)
	}

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", Usage{}, fmt.Errorf("decode chat response: %w", err)
	}

	usage := Usage{
		InputTokens:  chat.PromptEvalCount,
		OutputTokens: chat.EvalCount,
	}

	return strings.TrimSpace(chat.Message.Content), usage, nil
}

// Model implements Provider. The prefix keeps local spend distinguishable in
// the cost ledger.
func (p *OllamaProvider) Model() string {
	return ollamaModelPrefix + p.model
}

// CostUSD implements Provider.
func (p *OllamaProvider) CostUSD(Usage) float64 {
	return 0
}

var _ Provider = (*OllamaProvider)(nil)
