package cluster

const componentName = "cluster"

const (
	defaultMinClusterSize    = 5
	defaultMinSamples        = 4
	defaultEpsilon           = 0.3
	defaultRollingWindowDays = 30

	representativeCount = 5
	keyEntityCount      = 10
	keyClaimCount       = 10
	labelMaxChars       = 80

	identityThreshold = 0.7

	hoursPerDay = 24
)

const (
	labelSourceName = "cluster_labeling"
	labelSourceURL  = "internal://cluster-label"

	labelPromptFormat = "Generate a short narrative cluster label (max 10 words) and a 2-sentence summary for this group of related items:\n%s\n\nRespond with JSON: {\"label\": \"...\", \"summary\": \"...\"}"

	fallbackClusterLabel  = "Unlabeled Cluster"
	fallbackNoRepsSummary = "No representative items."
	fallbackFailedSummary = "Labeling failed."
)

const (
	logKeyComponent = "component"
	logKeyItemID    = "item_id"
	logKeyPoints    = "points"
	logKeyNoise     = "noise"
	logKeyClusters  = "clusters"
	logKeyMinSize   = "min_cluster_size"
)

const (
	runStatusOK      = "ok"
	runStatusSkipped = "skipped"
	runStatusError   = "error"
)
