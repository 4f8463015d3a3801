package llm

// Provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

const componentName = "llm"

// maxContentChars bounds how much raw content reaches the prompt. Longer
// bodies add token cost without improving extraction quality.
const maxContentChars = 4000

// contentToken marks where item content is spliced into the prompt.
const contentToken = "{content}"

// Log key strings.
const (
	logKeyComponent = "component"
	logKeyProvider  = "provider"
	logKeyItemID    = "item_id"
	logKeyModel     = "model"
)
