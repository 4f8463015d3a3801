// Package detect scans the current clusters for intelligence signals beyond
// membership: source families telling different stories inside one cluster
// (divergence), and volume, sentiment, and entity anomalies.
package detect

import (
	"context"
	"math"
	"time"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// MetaStore is the slice of the metadata store the detectors read.
type MetaStore interface {
	GetItemsByCluster(ctx context.Context, clusterID string) ([]domain.EnrichedItem, error)
	GetItems(ctx context.Context, since *time.Time, limit int, sourceType string) ([]domain.EnrichedItem, error)
}

// VectorIndex is the slice of the vector index the divergence detector
// reads.
type VectorIndex interface {
	GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error)
}

// Divergence reports two source families telling measurably different
// stories inside one cluster.
type Divergence struct {
	ClusterID      string  `json:"cluster_id"`
	ClusterLabel   string  `json:"cluster_label"`
	SourceA        string  `json:"source_a"`
	SourceB        string  `json:"source_b"`
	CosineDistance float64 `json:"cosine_distance"`
	Description    string  `json:"description"`
}

// Anomaly is one detected irregularity. Kind selects which optional fields
// are populated.
type Anomaly struct {
	Kind         string `json:"type"`
	ClusterID    string `json:"cluster_id,omitempty"`
	ClusterLabel string `json:"cluster_label,omitempty"`

	Recent6hCount int     `json:"recent_6h_count,omitempty"`
	AvgHourly7d   float64 `json:"avg_hourly_7d,omitempty"`
	SpikeRatio    float64 `json:"spike_ratio,omitempty"`

	SentimentBefore float64 `json:"sentiment_before,omitempty"`
	SentimentAfter  float64 `json:"sentiment_after,omitempty"`
	Shift           float64 `json:"shift,omitempty"`

	EntityName string `json:"entity_name,omitempty"`
	Count6h    int    `json:"count_6h,omitempty"`

	Description string `json:"description"`
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))

	return math.Round(v*scale) / scale
}
