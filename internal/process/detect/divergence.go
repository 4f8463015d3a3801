package detect

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/platform/observability"
)

// DivergenceDetector compares per-source sub-centroids within each cluster.
type DivergenceDetector struct {
	threshold float64
	store     MetaStore
	index     VectorIndex
	logger    zerolog.Logger
}

// NewDivergenceDetector builds a detector. A non-positive threshold falls
// back to the default.
func NewDivergenceDetector(threshold float64, store MetaStore, index VectorIndex, logger zerolog.Logger) *DivergenceDetector {
	if threshold <= 0 {
		threshold = defaultDivergenceThreshold
	}

	return &DivergenceDetector{
		threshold: threshold,
		store:     store,
		index:     index,
		logger:    logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// Detect checks every cluster with at least three members and two source
// families for sub-centroid divergence. Per-cluster failures are logged and
// skipped, never aborting the scan.
func (d *DivergenceDetector) Detect(ctx context.Context, clusters []domain.NarrativeCluster) []Divergence {
	divergences := make([]Divergence, 0)

	for _, cluster := range clusters {
		found, err := d.detectCluster(ctx, cluster)
		if err != nil {
			d.logger.Warn().Err(err).Str(logKeyClusterID, cluster.ID).Msg("divergence check failed")

			continue
		}

		divergences = append(divergences, found...)
	}

	observability.DivergencesDetected.Add(float64(len(divergences)))

	d.logger.Info().Int(logKeyDivergences, len(divergences)).Msg("Divergence detection complete")

	return divergences
}

func (d *DivergenceDetector) detectCluster(ctx context.Context, cluster domain.NarrativeCluster) ([]Divergence, error) {
	items, err := d.store.GetItemsByCluster(ctx, cluster.ID)
	if err != nil {
		return nil, fmt.Errorf("load cluster items: %w", err)
	}

	if len(items) < minDivergenceItems {
		return nil, nil
	}

	// Group embedding ids by source family, keeping first-appearance order.
	groups := make(map[string][]string)
	order := make([]string, 0)
	allIDs := make([]string, 0, len(items))

	for _, item := range items {
		key := string(item.SourceType)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], item.EmbeddingID)
		allIDs = append(allIDs, item.EmbeddingID)
	}

	if len(groups) < 2 {
		return nil, nil
	}

	vectors, err := d.index.GetByIDs(ctx, allIDs)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	centroids := make(map[string][]float64, len(groups))
	families := make([]string, 0, len(order))

	for _, family := range order {
		centroid := subCentroid(groups[family], vectors)
		if centroid == nil {
			continue
		}

		centroids[family] = centroid
		families = append(families, family)
	}

	if len(families) < 2 {
		return nil, nil
	}

	found := make([]Divergence, 0)

	for i := 0; i < len(families); i++ {
		for j := i + 1; j < len(families); j++ {
			a, b := families[i], families[j]

			dist := cosineDistance64(centroids[a], centroids[b])
			if dist <= d.threshold {
				continue
			}

			found = append(found, Divergence{
				ClusterID:      cluster.ID,
				ClusterLabel:   cluster.Label,
				SourceA:        a,
				SourceB:        b,
				CosineDistance: round(dist, 4),
				Description: fmt.Sprintf("'%s' and '%s' sources diverge on '%s' (distance=%.3f)",
					a, b, cluster.Label, dist),
			})
		}
	}

	return found, nil
}

// subCentroid averages the vectors found for the given ids; nil when none
// were found.
func subCentroid(ids []string, vectors map[string][]float32) []float64 {
	var (
		sum   []float64
		count int
	)

	for _, id := range ids {
		vec, ok := vectors[id]
		if !ok {
			continue
		}

		if sum == nil {
			sum = make([]float64, len(vec))
		}

		for d, v := range vec {
			sum[d] += float64(v)
		}

		count++
	}

	if count == 0 {
		return nil
	}

	for d := range sum {
		sum[d] /= float64(count)
	}

	return sum
}

func cosineDistance64(a, b []float64) float64 {
	var dot, normA, normB float64

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	sim := dot / (math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon)

	return 1 - sim
}
