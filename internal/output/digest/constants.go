package digest

const componentName = "digest"

const (
	promptClusterLimit = 10
	promptSectionLimit = 5
	promptEntityLimit  = 5
)

const (
	digestSourceName = "digest_generator"
	digestSourceURL  = "internal://daily-digest"

	// fallbackModel marks digests rendered without an LLM.
	fallbackModel = "fallback"
)

// digestPromptFormat takes the clusters, divergences, and anomalies sections
// in that order.
const digestPromptFormat = `You are an intelligence analyst. Generate a concise daily intelligence digest based on the following narrative clusters, source divergences, and anomalies.

CLUSTERS:
%s

DIVERGENCES:
%s

ANOMALIES:
%s

Write a clear, professional intelligence digest that:
1. Highlights the most significant narratives
2. Notes any source disagreements (divergences)
3. Flags anomalies and emerging trends
4. Is structured with clear sections

Keep it under 500 words. Write in professional intelligence briefing style.`

const (
	logKeyComponent = "component"
	logKeyClusters  = "clusters"
	logKeyItems     = "items"
	logKeyModel     = "model"
)

const (
	statusOK    = "ok"
	statusError = "error"
)
