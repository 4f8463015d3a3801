// Package domain holds the data model shared across the pipeline: raw and
// enriched items, narrative clusters, daily digests, source health rows, and
// the LLM cost ledger.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies one of the supported source families.
type SourceType string

const (
	SourceRSS     SourceType = "rss"
	SourceGDELT   SourceType = "gdelt"
	SourceBluesky SourceType = "bluesky"
	SourceReddit  SourceType = "reddit"
)

// ValidSourceType reports whether s names a known source family.
func ValidSourceType(s string) bool {
	switch SourceType(s) {
	case SourceRSS, SourceGDELT, SourceBluesky, SourceReddit:
		return true
	}
	return false
}

// EntityType classifies a named entity extracted during enrichment.
type EntityType string

const (
	EntityPerson EntityType = "person"
	EntityOrg    EntityType = "org"
	EntityPlace  EntityType = "place"
	EntityEvent  EntityType = "event"
)

// ValidEntityType reports whether s names a known entity type.
func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityPerson, EntityOrg, EntityPlace, EntityEvent:
		return true
	}
	return false
}

// EntityRole describes how an entity participates in an item's narrative.
type EntityRole string

const (
	RoleSubject   EntityRole = "subject"
	RoleTarget    EntityRole = "target"
	RoleSource    EntityRole = "source"
	RoleLocation  EntityRole = "location"
	RoleMentioned EntityRole = "mentioned"
)

// ValidEntityRole reports whether s names a known entity role.
func ValidEntityRole(s string) bool {
	switch EntityRole(s) {
	case RoleSubject, RoleTarget, RoleSource, RoleLocation, RoleMentioned:
		return true
	}
	return false
}

// ClusterStatus tracks the lifecycle of a narrative cluster.
type ClusterStatus string

const (
	ClusterEmerging ClusterStatus = "emerging"
	ClusterActive   ClusterStatus = "active"
	ClusterFading   ClusterStatus = "fading"
	ClusterDead     ClusterStatus = "dead"
)

// Entity is a named actor, organisation, place, or event referenced by an
// item, together with the role it plays there.
type Entity struct {
	Name    string     `json:"name"`
	Type    EntityType `json:"type"`
	Role    EntityRole `json:"role"`
	Aliases []string   `json:"aliases"`
}

// RawItem is one fetched unit of content before enrichment. Raw items are
// never persisted; they are either promoted to an EnrichedItem or dropped.
type RawItem struct {
	ID          string
	SourceType  SourceType
	SourceName  string
	SourceURL   string
	Title       string
	ContentText string
	Author      string
	PublishedAt time.Time
	IngestedAt  time.Time
	Language    string
	Metadata    map[string]any
}

const defaultLanguage = "en"

// NewRawItem builds a RawItem with a fresh id and ingestion timestamp.
// Content fields are filled in by the caller.
func NewRawItem(sourceType SourceType, sourceName, sourceURL string) RawItem {
	return RawItem{
		ID:         uuid.NewString(),
		SourceType: sourceType,
		SourceName: sourceName,
		SourceURL:  sourceURL,
		IngestedAt: time.Now().UTC(),
		Language:   defaultLanguage,
	}
}

// EnrichmentResult is the structured output of one LLM enrichment call.
type EnrichmentResult struct {
	Summary   string   `json:"summary"`
	Entities  []Entity `json:"entities"`
	Claims    []string `json:"claims"`
	Framing   string   `json:"framing"`
	Sentiment float64  `json:"sentiment"`
	TopicTags []string `json:"topic_tags"`
}

// EnrichedItem is a raw item promoted with enrichment output and embedding
// bookkeeping. This is the unit the metadata store persists.
type EnrichedItem struct {
	ID          string     `json:"id"`
	SourceType  SourceType `json:"source_type"`
	SourceName  string     `json:"source_name"`
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title,omitempty"`
	PublishedAt time.Time  `json:"published_at"`
	IngestedAt  time.Time  `json:"ingested_at"`
	Language    string     `json:"language"`

	Summary   string   `json:"summary"`
	Entities  []Entity `json:"entities"`
	Claims    []string `json:"claims"`
	Framing   string   `json:"framing"`
	Sentiment float64  `json:"sentiment"`
	TopicTags []string `json:"topic_tags"`

	EmbeddingID    string `json:"embedding_id"`
	EmbeddingModel string `json:"embedding_model"`

	ClusterID    *string `json:"cluster_id,omitempty"`
	ClusterLabel *string `json:"cluster_label,omitempty"`
	Archived     bool    `json:"archived"`

	EnrichmentModel   string  `json:"enrichment_model"`
	EnrichmentCostUSD float64 `json:"enrichment_cost_usd"`
}

// NarrativeCluster is a density cluster of enriched items in embedding
// space, carrying the aggregates the digest and the read API serve.
type NarrativeCluster struct {
	ID                    string         `json:"id"`
	Label                 string         `json:"label"`
	Summary               string         `json:"summary"`
	ItemCount             int            `json:"item_count"`
	FirstSeen             time.Time      `json:"first_seen"`
	LastUpdated           time.Time      `json:"last_updated"`
	Centroid              []float32      `json:"centroid"`
	SourceDistribution    map[string]int `json:"source_distribution"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	KeyEntities           []string       `json:"key_entities"`
	KeyClaims             []string       `json:"key_claims"`
	Status                ClusterStatus  `json:"status"`
	ParentClusterID       *string        `json:"parent_cluster_id,omitempty"`

	// MemberIDs carries the member set from the clusterer to persistence
	// and prior matching. Memberships live in their own table, not on the
	// cluster row.
	MemberIDs []string `json:"-"`
}

// DailyDigest is one generated intelligence briefing.
type DailyDigest struct {
	ID           string    `json:"id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Content      string    `json:"content"`
	ClusterCount int       `json:"cluster_count"`
	ItemCount    int       `json:"item_count"`
	Model        string    `json:"model"`
}

// SourceStatus is the health row kept per source family.
type SourceStatus struct {
	SourceName    string     `json:"source_name"`
	SourceType    SourceType `json:"source_type"`
	LastFetchAt   *time.Time `json:"last_fetch_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	ItemsFetched  int        `json:"items_fetched"`
	ErrorCount    int        `json:"error_count"`
	LastError     string     `json:"last_error,omitempty"`
}

// CostLogEntry records the spend of one LLM call chain.
type CostLogEntry struct {
	ItemID       string    `json:"item_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Timestamp    time.Time `json:"timestamp"`
}
