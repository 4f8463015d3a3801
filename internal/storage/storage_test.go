package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testEnrichedItem(url string, published time.Time) domain.EnrichedItem {
	return domain.EnrichedItem{
		ID:          uuid.NewString(),
		SourceType:  domain.SourceRSS,
		SourceName:  "reuters_world",
		SourceURL:   url,
		Title:       "A headline",
		PublishedAt: published,
		IngestedAt:  published.Add(time.Minute),
		Language:    "en",
		Summary:     "Summary text.",
		Entities: []domain.Entity{
			{Name: "GridCo", Type: domain.EntityOrg, Role: domain.RoleSubject, Aliases: []string{"Grid Company"}},
		},
		Claims:          []string{"Demand hit a record."},
		Framing:         "crisis framing",
		Sentiment:       -0.4,
		TopicTags:       []string{"energy"},
		EmbeddingID:     uuid.NewString(),
		EmbeddingModel:  "all-MiniLM-L6-v2",
		EnrichmentModel: "claude-haiku-4-5-20251001",
	}
}

func TestStore_InsertAndGetItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	published := time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)
	item := testEnrichedItem("https://example.com/a", published)
	require.NoError(t, store.InsertItem(ctx, item))

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.SourceURL, got.SourceURL)
	assert.True(t, got.PublishedAt.Equal(published))
	assert.Equal(t, item.Entities, got.Entities)
	assert.Equal(t, item.Claims, got.Claims)
	assert.Equal(t, item.TopicTags, got.TopicTags)
	assert.Equal(t, -0.4, got.Sentiment)
	assert.Nil(t, got.ClusterID)
	assert.Nil(t, got.ClusterLabel)
}

func TestStore_GetItem_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetItem(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_InsertItem_DuplicateURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	first := testEnrichedItem("https://example.com/same", now)
	require.NoError(t, store.InsertItem(ctx, first))

	second := testEnrichedItem("https://example.com/same", now)
	err := store.InsertItem(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateURL)

	// The stored row is the first insert, untouched.
	got, err := store.GetItem(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	exists, err := store.ItemURLExists(ctx, "https://example.com/same")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_GetItems_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	old := testEnrichedItem("https://example.com/old", base.AddDate(0, 0, -10))
	recent := testEnrichedItem("https://example.com/recent", base)
	recent.SourceType = domain.SourceGDELT
	newest := testEnrichedItem("https://example.com/newest", base.Add(2*time.Hour))

	for _, item := range []domain.EnrichedItem{old, recent, newest} {
		require.NoError(t, store.InsertItem(ctx, item))
	}

	all, err := store.GetItems(ctx, nil, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID, "newest first")
	assert.Equal(t, old.ID, all[2].ID)

	since := base.Add(-time.Hour)
	windowed, err := store.GetItems(ctx, &since, 0, "")
	require.NoError(t, err)
	assert.Len(t, windowed, 2)

	gdeltOnly, err := store.GetItems(ctx, nil, 0, string(domain.SourceGDELT))
	require.NoError(t, err)
	require.Len(t, gdeltOnly, 1)
	assert.Equal(t, recent.ID, gdeltOnly[0].ID)

	limited, err := store.GetItems(ctx, nil, 1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_ArchiveOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := testEnrichedItem("https://example.com/old", now.AddDate(0, 0, -40))
	fresh := testEnrichedItem("https://example.com/fresh", now)
	require.NoError(t, store.InsertItem(ctx, old))
	require.NoError(t, store.InsertItem(ctx, fresh))

	archived, err := store.ArchiveOlderThan(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), archived)

	items, err := store.GetItems(ctx, nil, 0, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fresh.ID, items[0].ID)

	count, err := store.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The row survives with the flag set and stays reachable by id.
	got, err := store.GetItem(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	// Second pass is a no-op.
	archived, err = store.ArchiveOlderThan(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Zero(t, archived)
}

func testCluster(id string) domain.NarrativeCluster {
	now := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)

	return domain.NarrativeCluster{
		ID:                    id,
		Label:                 "Grid strain narrative",
		Summary:               "Multiple outlets report strain on the grid.",
		ItemCount:             6,
		FirstSeen:             now.AddDate(0, 0, -2),
		LastUpdated:           now,
		Centroid:              []float32{0.1, 0.2, 0.3},
		SourceDistribution:    map[string]int{"rss": 4, "reddit": 2},
		SentimentDistribution: map[string]int{"negative": 5, "neutral": 1},
		KeyEntities:           []string{"GridCo", "West Region"},
		KeyClaims:             []string{"Demand hit a record."},
		Status:                domain.ClusterEmerging,
	}
}

func TestStore_UpsertAndGetCluster(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cluster := testCluster(uuid.NewString())
	require.NoError(t, store.UpsertCluster(ctx, cluster))

	got, err := store.GetCluster(ctx, cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, cluster.Label, got.Label)
	assert.Equal(t, cluster.Centroid, got.Centroid)
	assert.Equal(t, cluster.SourceDistribution, got.SourceDistribution)
	assert.Equal(t, cluster.KeyEntities, got.KeyEntities)
	assert.Equal(t, domain.ClusterEmerging, got.Status)

	// Upsert replaces in place.
	cluster.Label = "Renamed"
	cluster.ItemCount = 9
	require.NoError(t, store.UpsertCluster(ctx, cluster))

	got, err = store.GetCluster(ctx, cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Label)
	assert.Equal(t, 9, got.ItemCount)

	count, err := store.CountClusters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_GetActiveClusters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	small := testCluster(uuid.NewString())
	small.ItemCount = 3

	big := testCluster(uuid.NewString())
	big.ItemCount = 20
	big.Status = domain.ClusterActive

	faded := testCluster(uuid.NewString())
	faded.Status = domain.ClusterFading

	for _, c := range []domain.NarrativeCluster{small, big, faded} {
		require.NoError(t, store.UpsertCluster(ctx, c))
	}

	active, err := store.GetActiveClusters(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, big.ID, active[0].ID, "largest first")
	assert.Equal(t, small.ID, active[1].ID)

	require.NoError(t, store.UpdateClusterStatus(ctx, big.ID, domain.ClusterFading))

	active, err = store.GetActiveClusters(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestStore_ClusterMemberships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := testEnrichedItem("https://example.com/m", time.Now().UTC())
	require.NoError(t, store.InsertItem(ctx, item))

	cluster := testCluster(uuid.NewString())
	require.NoError(t, store.UpsertCluster(ctx, cluster))

	require.NoError(t, store.SetClusterMembership(ctx, item.ID, cluster.ID))
	require.NoError(t, store.UpdateItemCluster(ctx, item.ID, cluster.ID, cluster.Label))

	members, err := store.GetItemsByCluster(ctx, cluster.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.NotNil(t, members[0].ClusterID)
	assert.Equal(t, cluster.ID, *members[0].ClusterID)
	require.NotNil(t, members[0].ClusterLabel)
	assert.Equal(t, cluster.Label, *members[0].ClusterLabel)

	var memberships int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cluster_membership`).Scan(&memberships))
	assert.Equal(t, 1, memberships)

	require.NoError(t, store.ClearAllMemberships(ctx))
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cluster_membership`).Scan(&memberships))
	assert.Zero(t, memberships)
}

func TestStore_Digests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetLatestDigest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	older := domain.DailyDigest{
		ID:           uuid.NewString(),
		GeneratedAt:  time.Date(2026, 2, 13, 6, 0, 0, 0, time.UTC),
		Content:      "older digest",
		ClusterCount: 2,
		ItemCount:    14,
		Model:        "claude-haiku-4-5-20251001",
	}
	newer := older
	newer.ID = uuid.NewString()
	newer.GeneratedAt = older.GeneratedAt.AddDate(0, 0, 1)
	newer.Content = "newer digest"

	require.NoError(t, store.InsertDigest(ctx, older))
	require.NoError(t, store.InsertDigest(ctx, newer))

	got, err := store.GetLatestDigest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer digest", got.Content)
	assert.True(t, got.GeneratedAt.Equal(newer.GeneratedAt))
}

func TestStore_SourceStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpsertSourceStatus(ctx, domain.SourceStatus{
		SourceName:  "rss",
		SourceType:  domain.SourceRSS,
		LastFetchAt: &now,
		ErrorCount:  1,
		LastError:   "feed timeout",
	}))

	// Replacement overwrites the whole row.
	require.NoError(t, store.UpsertSourceStatus(ctx, domain.SourceStatus{
		SourceName:    "rss",
		SourceType:    domain.SourceRSS,
		LastFetchAt:   &now,
		LastSuccessAt: &now,
		ItemsFetched:  12,
	}))
	require.NoError(t, store.UpsertSourceStatus(ctx, domain.SourceStatus{
		SourceName: "gdelt",
		SourceType: domain.SourceGDELT,
	}))

	statuses, err := store.GetAllSourceStatus(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "gdelt", statuses[0].SourceName, "ordered by name")

	rss := statuses[1]
	assert.Equal(t, 12, rss.ItemsFetched)
	assert.Zero(t, rss.ErrorCount)
	assert.Empty(t, rss.LastError)
	require.NotNil(t, rss.LastSuccessAt)
	assert.True(t, rss.LastSuccessAt.Equal(now))
	assert.Nil(t, statuses[0].LastFetchAt)
}

func TestStore_DailyCostWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	entry := func(cost float64, at time.Time) domain.CostLogEntry {
		return domain.CostLogEntry{
			ItemID:       uuid.NewString(),
			Model:        "claude-haiku-4-5-20251001",
			InputTokens:  100,
			OutputTokens: 50,
			CostUSD:      cost,
			Timestamp:    at,
		}
	}

	require.NoError(t, store.AppendCostLog(ctx, entry(0.01, day.Add(1*time.Hour))))
	require.NoError(t, store.AppendCostLog(ctx, entry(0.02, day.Add(12*time.Hour))))
	require.NoError(t, store.AppendCostLog(ctx, entry(0.03, day.Add(23*time.Hour))))
	// Yesterday's spend must not count toward today.
	require.NoError(t, store.AppendCostLog(ctx, entry(0.05, day.Add(-2*time.Hour))))

	daily, err := store.DailyCostUSD(ctx, day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.06, daily, 1e-9)

	yesterday, err := store.DailyCostUSD(ctx, day.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, yesterday, 1e-9)

	total, err := store.TotalCostUSD(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.11, total, 1e-9)
}

func TestStore_DailyCostEmpty(t *testing.T) {
	store := newTestStore(t)

	daily, err := store.DailyCostUSD(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, daily)
}
