package llm

import "strings"

// Cost per 1M tokens (in USD) for Anthropic models.
// Reference: https://www.anthropic.com/pricing
const (
	costClaudeHaikuPrompt    = 0.80
	costClaudeHaikuComplete  = 4.00
	costClaudeSonnetPrompt   = 3.00
	costClaudeSonnetComplete = 15.00
	costClaudeOpusPrompt     = 15.00
	costClaudeOpusComplete   = 75.00

	tokensPerMillion = 1000000.0
)

// estimateAnthropicCost prices one call in USD from its token counts.
func estimateAnthropicCost(model string, inputTokens, outputTokens int) float64 {
	promptRate, completionRate := anthropicCostRates(model)

	return float64(inputTokens)*promptRate/tokensPerMillion + float64(outputTokens)*completionRate/tokensPerMillion
}

// anthropicCostRates returns prompt and completion rates per 1M tokens.
// Unrecognized models fall back to Haiku rates.
func anthropicCostRates(model string) (promptRate, completionRate float64) {
	modelLower := strings.ToLower(model)

	switch {
	case strings.Contains(modelLower, "opus"):
		return costClaudeOpusPrompt, costClaudeOpusComplete
	case strings.Contains(modelLower, "sonnet"):
		return costClaudeSonnetPrompt, costClaudeSonnetComplete
	default:
		return costClaudeHaikuPrompt, costClaudeHaikuComplete
	}
}
