package vector

// Index modes.
const (
	ModeMemory = "memory"
	ModeLocal  = "local"
	ModeCloud  = "cloud"
)

// DefaultCollection is the Qdrant collection holding item embeddings.
const DefaultCollection = "amon_hen_items"

// Payload keys stored alongside each point. The enrichment pipeline writes
// them and the search API reads them back without a round trip to SQLite.
const (
	PayloadSourceType  = "source_type"
	PayloadSourceName  = "source_name"
	PayloadPublishedAt = "published_at"
	PayloadTitle       = "title"
	PayloadSummary     = "summary"
)

const (
	componentName = "vector"

	defaultDimensions  = 384
	defaultSearchLimit = 20
	defaultQdrantPort  = 6334
	scrollPageSize     = 1000

	logKeyComponent  = "component"
	logKeyMode       = "mode"
	logKeyCollection = "collection"
)
