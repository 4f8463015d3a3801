package llm

import (
	"context"
	"sync"
)

// defaultMockResponse is a structurally valid enrichment reply so pipelines
// wired to the mock provider keep flowing end to end.
const defaultMockResponse = `{
  "summary": "Mock summary of the content.",
  "entities": [
    {"name": "Mock Entity", "type": "org", "role": "subject", "aliases": []}
  ],
  "claims": ["Mock claim extracted from the content."],
  "framing": "neutral reporting",
  "sentiment": 0.0,
  "topic_tags": ["mock"]
}`

// MockProvider replays canned responses and records every conversation it
// receives. It backs tests and keyless local runs.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	calls     [][]Turn
	err       error
}

// NewMockProvider builds a mock provider. With no arguments every call
// returns defaultMockResponse; otherwise responses are consumed in order and
// the last one repeats.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// FailWith makes every subsequent call return err.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Complete implements Provider.
func (p *MockProvider) Complete(_ context.Context, turns []Turn) (string, Usage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := make([]Turn, len(turns))
	copy(copied, turns)
	p.calls = append(p.calls, copied)

	if p.err != nil {
		return "", Usage{}, p.err
	}

	if len(p.responses) == 0 {
		return defaultMockResponse, Usage{}, nil
	}

	text := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}

	return text, Usage{InputTokens: 1, OutputTokens: 1}, nil
}

// Calls returns every conversation the provider has seen.
func (p *MockProvider) Calls() [][]Turn {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([][]Turn, len(p.calls))
	copy(out, p.calls)

	return out
}

// Model implements Provider.
func (p *MockProvider) Model() string {
	return ProviderMock
}

// CostUSD implements Provider.
func (p *MockProvider) CostUSD(Usage) float64 {
	return 0
}

var _ Provider = (*MockProvider)(nil)
