// Package cluster groups enriched items into narrative clusters by running
// density clustering over the rolling window of embedding vectors, labels
// each group, reconciles cluster identity against the previous run via
// member overlap, and persists the result.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/platform/observability"
	"github.com/civilian24601/amon-hen/internal/storage"
)

// MetaStore is the slice of the metadata store the clusterer reads and
// writes.
type MetaStore interface {
	GetItem(ctx context.Context, id string) (*domain.EnrichedItem, error)
	GetItemsByCluster(ctx context.Context, clusterID string) ([]domain.EnrichedItem, error)
	GetActiveClusters(ctx context.Context) ([]domain.NarrativeCluster, error)
	UpsertCluster(ctx context.Context, cluster domain.NarrativeCluster) error
	UpdateClusterStatus(ctx context.Context, id string, status domain.ClusterStatus) error
	SetClusterMembership(ctx context.Context, itemID, clusterID string) error
	ClearAllMemberships(ctx context.Context) error
	UpdateItemCluster(ctx context.Context, itemID, clusterID, clusterLabel string) error
}

// VectorIndex is the slice of the vector index the clusterer scrolls.
type VectorIndex interface {
	ScrollAll(ctx context.Context, since *time.Time) ([]string, [][]float32, error)
}

// LLM labels clusters through a synthetic enrichment call.
type LLM interface {
	Enrich(ctx context.Context, item domain.RawItem) (domain.EnrichmentResult, domain.CostLogEntry, error)
}

// Config tunes the density clustering pass.
type Config struct {
	MinClusterSize    int
	MinSamples        int
	Epsilon           float64
	RollingWindowDays int
}

// Clusterer runs the clustering stage of the pipeline.
type Clusterer struct {
	cfg    Config
	store  MetaStore
	index  VectorIndex
	llm    LLM // nil disables LLM labelling
	logger zerolog.Logger
}

// New builds a clusterer. Zero config fields fall back to defaults; a nil
// LLM switches labelling to the representative-summary fallback.
func New(cfg Config, store MetaStore, index VectorIndex, llmClient LLM, logger zerolog.Logger) *Clusterer {
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = defaultMinClusterSize
	}

	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaultMinSamples
	}

	if cfg.Epsilon <= 0 {
		cfg.Epsilon = defaultEpsilon
	}

	if cfg.RollingWindowDays <= 0 {
		cfg.RollingWindowDays = defaultRollingWindowDays
	}

	return &Clusterer{
		cfg:    cfg,
		store:  store,
		index:  index,
		llm:    llmClient,
		logger: logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// Run executes one full clustering cycle: scroll the rolling window, cluster,
// build and label the groups, reconcile identity against the prior active
// set, then persist. Too few points in the window is a no-op that leaves all
// prior state untouched.
func (c *Clusterer) Run(ctx context.Context) ([]domain.NarrativeCluster, error) {
	start := time.Now()
	now := start.UTC()

	since := now.Add(-time.Duration(c.cfg.RollingWindowDays) * hoursPerDay * time.Hour)

	ids, vectors, err := c.index.ScrollAll(ctx, &since)
	if err != nil {
		observability.ClusteringRuns.WithLabelValues(runStatusError).Inc()

		return nil, fmt.Errorf("scroll vectors: %w", err)
	}

	if len(ids) < c.cfg.MinClusterSize {
		c.logger.Info().
			Int(logKeyPoints, len(ids)).
			Int(logKeyMinSize, c.cfg.MinClusterSize).
			Msg("too few items in window for clustering")
		observability.ClusteringRuns.WithLabelValues(runStatusSkipped).Inc()

		return nil, nil
	}

	labels := dbscan(vectors, c.cfg.Epsilon, c.cfg.MinSamples)
	groups := groupByLabel(labels, c.cfg.MinClusterSize)

	clustered := 0
	for _, indices := range groups {
		clustered += len(indices)
	}

	c.logger.Info().
		Int(logKeyClusters, len(groups)).
		Int(logKeyPoints, len(ids)).
		Int(logKeyNoise, len(ids)-clustered).
		Msg("density clustering complete")

	items := c.loadItems(ctx, ids)

	newClusters := make([]domain.NarrativeCluster, 0, len(groups))

	for _, indices := range groups {
		built, ok := c.buildCluster(ctx, now, ids, vectors, indices, items)
		if !ok {
			continue
		}

		newClusters = append(newClusters, built)
	}

	previous, err := c.store.GetActiveClusters(ctx)
	if err != nil {
		observability.ClusteringRuns.WithLabelValues(runStatusError).Inc()

		return nil, fmt.Errorf("load previous clusters: %w", err)
	}

	if err = c.matchPrior(ctx, newClusters, previous); err != nil {
		observability.ClusteringRuns.WithLabelValues(runStatusError).Inc()

		return nil, err
	}

	if err = c.persist(ctx, newClusters, previous); err != nil {
		observability.ClusteringRuns.WithLabelValues(runStatusError).Inc()

		return nil, err
	}

	observability.ClusteringRuns.WithLabelValues(runStatusOK).Inc()
	observability.ClustersActive.Set(float64(len(newClusters)))
	observability.ClusteringDurationSeconds.Observe(time.Since(start).Seconds())

	c.logger.Info().Int(logKeyClusters, len(newClusters)).Msg("Persisted clusters")

	return newClusters, nil
}

func (c *Clusterer) loadItems(ctx context.Context, ids []string) map[string]*domain.EnrichedItem {
	items := make(map[string]*domain.EnrichedItem, len(ids))

	for _, id := range ids {
		item, err := c.store.GetItem(ctx, id)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				c.logger.Warn().Err(err).Str(logKeyItemID, id).Msg("item lookup failed")
			}

			continue
		}

		items[id] = item
	}

	return items
}

type memberPoint struct {
	id   string
	vec  []float32
	item *domain.EnrichedItem
}

func (c *Clusterer) buildCluster(ctx context.Context, now time.Time, ids []string, vectors [][]float32, indices []int, items map[string]*domain.EnrichedItem) (domain.NarrativeCluster, bool) {
	memberIDs := make([]string, 0, len(indices))
	members := make([]memberPoint, 0, len(indices))

	for _, idx := range indices {
		memberIDs = append(memberIDs, ids[idx])

		item, ok := items[ids[idx]]
		if !ok {
			continue
		}

		members = append(members, memberPoint{id: ids[idx], vec: vectors[idx], item: item})
	}

	if len(members) == 0 {
		return domain.NarrativeCluster{}, false
	}

	// Centroid covers every group vector; items missing from the metadata
	// store still shape the geometry, they just cannot represent it.
	centroid := meanVector(vectors, indices)

	reps := representatives(members, centroid, representativeCount)
	label, summary := c.labelCluster(ctx, reps)

	sourceDist := make(map[string]int)
	sentiments := make([]float64, 0, len(members))
	entityCounts := make(map[string]int)
	entityOrder := make([]string, 0)
	claims := make([]string, 0)

	firstSeen := members[0].item.PublishedAt

	for _, m := range members {
		sourceDist[string(m.item.SourceType)]++
		sentiments = append(sentiments, m.item.Sentiment)

		for _, entity := range m.item.Entities {
			if _, seen := entityCounts[entity.Name]; !seen {
				entityOrder = append(entityOrder, entity.Name)
			}

			entityCounts[entity.Name]++
		}

		claims = append(claims, m.item.Claims...)

		if m.item.PublishedAt.Before(firstSeen) {
			firstSeen = m.item.PublishedAt
		}
	}

	built := domain.NarrativeCluster{
		ID:                    uuid.NewString(),
		Label:                 label,
		Summary:               summary,
		ItemCount:             len(members),
		FirstSeen:             firstSeen,
		LastUpdated:           now,
		Centroid:              centroid,
		SourceDistribution:    sourceDist,
		SentimentDistribution: domain.BinSentiments(sentiments),
		KeyEntities:           topEntities(entityCounts, entityOrder, keyEntityCount),
		KeyClaims:             distinctClaims(claims, keyClaimCount),
		Status:                domain.ClusterEmerging,
		MemberIDs:             memberIDs,
	}

	return built, true
}

// representatives picks the members nearest the centroid by Euclidean
// distance.
func representatives(members []memberPoint, centroid []float32, limit int) []*domain.EnrichedItem {
	type scored struct {
		dist float64
		item *domain.EnrichedItem
	}

	ranked := make([]scored, 0, len(members))
	for _, m := range members {
		ranked = append(ranked, scored{dist: euclideanDistance(m.vec, centroid), item: m.item})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	reps := make([]*domain.EnrichedItem, 0, len(ranked))
	for _, r := range ranked {
		reps = append(reps, r.item)
	}

	return reps
}

func (c *Clusterer) labelCluster(ctx context.Context, reps []*domain.EnrichedItem) (string, string) {
	if c.llm == nil {
		return fallbackLabel(reps, fallbackNoRepsSummary)
	}

	var b strings.Builder
	for i, item := range reps {
		fmt.Fprintf(&b, "\n%d. Summary: %s\n   Framing: %s\n", i+1, item.Summary, item.Framing)
	}

	prompt := domain.NewRawItem(domain.SourceRSS, labelSourceName, labelSourceURL)
	prompt.ContentText = fmt.Sprintf(labelPromptFormat, b.String())
	prompt.PublishedAt = time.Now().UTC()

	result, _, err := c.llm.Enrich(ctx, prompt)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cluster labelling failed")

		return fallbackLabel(reps, fallbackFailedSummary)
	}

	return truncateRunes(result.Summary, labelMaxChars), result.Summary
}

func fallbackLabel(reps []*domain.EnrichedItem, emptySummary string) (string, string) {
	if len(reps) == 0 {
		return fallbackClusterLabel, emptySummary
	}

	return truncateRunes(reps[0].Summary, labelMaxChars), reps[0].Summary
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}

// topEntities ranks entity names by frequency, ties broken by first
// appearance across members.
func topEntities(counts map[string]int, order []string, limit int) []string {
	names := make([]string, 0, len(order))
	names = append(names, order...)

	sort.SliceStable(names, func(i, j int) bool { return counts[names[i]] > counts[names[j]] })

	if len(names) > limit {
		names = names[:limit]
	}

	return names
}

// distinctClaims keeps the first occurrence of each claim, capped at limit.
func distinctClaims(claims []string, limit int) []string {
	seen := make(map[string]struct{}, len(claims))
	out := make([]string, 0, limit)

	for _, claim := range claims {
		if _, ok := seen[claim]; ok {
			continue
		}

		seen[claim] = struct{}{}

		out = append(out, claim)
		if len(out) == limit {
			break
		}
	}

	return out
}

// matchPrior reconciles new clusters against the previous active set by
// Jaccard overlap on member ids. A prior id is claimed at most once; a match
// above the identity threshold inherits the prior id and first_seen and
// promotes the cluster to active.
func (c *Clusterer) matchPrior(ctx context.Context, newClusters, previous []domain.NarrativeCluster) error {
	if len(previous) == 0 {
		return nil
	}

	prevMembers := make(map[string]map[string]struct{}, len(previous))

	for _, prev := range previous {
		memberItems, err := c.store.GetItemsByCluster(ctx, prev.ID)
		if err != nil {
			return fmt.Errorf("load members of cluster %s: %w", prev.ID, err)
		}

		members := make(map[string]struct{}, len(memberItems))
		for _, item := range memberItems {
			members[item.ID] = struct{}{}
		}

		prevMembers[prev.ID] = members
	}

	claimed := make(map[string]struct{}, len(previous))

	for i := range newClusters {
		nc := &newClusters[i]
		if len(nc.MemberIDs) == 0 {
			continue
		}

		newSet := make(map[string]struct{}, len(nc.MemberIDs))
		for _, id := range nc.MemberIDs {
			newSet[id] = struct{}{}
		}

		bestOverlap := 0.0
		bestPrev := -1

		for j, prev := range previous {
			if _, ok := claimed[prev.ID]; ok {
				continue
			}

			pm := prevMembers[prev.ID]
			if len(pm) == 0 {
				continue
			}

			if overlap := jaccard(newSet, pm); overlap > bestOverlap {
				bestOverlap = overlap
				bestPrev = j
			}
		}

		if bestOverlap > identityThreshold && bestPrev >= 0 {
			prev := previous[bestPrev]

			nc.ID = prev.ID
			nc.Status = domain.ClusterActive
			nc.FirstSeen = prev.FirstSeen

			claimed[prev.ID] = struct{}{}
		}
	}

	return nil
}

func jaccard(a, b map[string]struct{}) float64 {
	intersection := 0

	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// persist rebuilds memberships from scratch, upserts every new cluster, and
// fades prior clusters whose id was not claimed this run.
func (c *Clusterer) persist(ctx context.Context, newClusters, previous []domain.NarrativeCluster) error {
	if err := c.store.ClearAllMemberships(ctx); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}

	for _, built := range newClusters {
		if err := c.store.UpsertCluster(ctx, built); err != nil {
			return fmt.Errorf("upsert cluster %s: %w", built.ID, err)
		}

		for _, memberID := range built.MemberIDs {
			if err := c.store.SetClusterMembership(ctx, memberID, built.ID); err != nil {
				return fmt.Errorf("set membership %s: %w", memberID, err)
			}

			if err := c.store.UpdateItemCluster(ctx, memberID, built.ID, built.Label); err != nil {
				return fmt.Errorf("update item cluster %s: %w", memberID, err)
			}
		}
	}

	current := make(map[string]struct{}, len(newClusters))
	for _, built := range newClusters {
		current[built.ID] = struct{}{}
	}

	for _, prev := range previous {
		if _, ok := current[prev.ID]; ok {
			continue
		}

		if err := c.store.UpdateClusterStatus(ctx, prev.ID, domain.ClusterFading); err != nil {
			return fmt.Errorf("fade cluster %s: %w", prev.ID, err)
		}
	}

	return nil
}
