package domain

import "strings"

// Sentiment distribution bucket names.
const (
	BinVeryNegative = "very_negative"
	BinNegative     = "negative"
	BinNeutral      = "neutral"
	BinPositive     = "positive"
	BinVeryPositive = "very_positive"
)

// ClampSentiment forces v into the valid [-1, 1] range.
func ClampSentiment(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// BinSentiment maps a sentiment value to its distribution bucket. Intervals
// are open on the low side and closed on the high side, so -0.6 is still
// very_negative and 0.2 is still neutral.
func BinSentiment(v float64) string {
	switch {
	case v <= -0.6:
		return BinVeryNegative
	case v <= -0.2:
		return BinNegative
	case v <= 0.2:
		return BinNeutral
	case v <= 0.6:
		return BinPositive
	default:
		return BinVeryPositive
	}
}

// BinSentiments counts values per bucket. Every bucket is present in the
// result, including empty ones.
func BinSentiments(values []float64) map[string]int {
	bins := map[string]int{
		BinVeryNegative: 0,
		BinNegative:     0,
		BinNeutral:      0,
		BinPositive:     0,
		BinVeryPositive: 0,
	}
	for _, v := range values {
		bins[BinSentiment(v)]++
	}
	return bins
}

// SignalText flattens an enrichment result into the text that gets embedded:
// summary, framing, and claims joined with single spaces. Raw content never
// reaches the embedding space.
func SignalText(r EnrichmentResult) string {
	return r.Summary + " " + r.Framing + " " + strings.Join(r.Claims, " ")
}
