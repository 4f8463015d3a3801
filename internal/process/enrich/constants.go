package enrich

const componentName = "enrich"

const defaultConcurrency = 3

const (
	logKeyComponent = "component"
	logKeyItemID    = "item_id"
	logKeySource    = "source"
	logKeyURL       = "url"
	logKeySpentUSD  = "spent_usd"
	logKeyBudgetUSD = "budget_usd"
	logKeyEnriched  = "enriched"
	logKeyTotal     = "total"
)

// Outcome labels recorded per item on the enrichment counter.
const (
	statusEnriched    = "enriched"
	statusBudget      = "budget_skipped"
	statusDuplicate   = "duplicate"
	statusLLMError    = "llm_error"
	statusEmbedError  = "embed_error"
	statusStoreError  = "store_error"
	statusVectorError = "vector_error"
)

const (
	embedStatusOK    = "ok"
	embedStatusError = "error"
)
