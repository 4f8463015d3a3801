package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/core/embeddings"
	"github.com/civilian24601/amon-hen/internal/storage"
	"github.com/civilian24601/amon-hen/internal/vector"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Store, *vector.MemoryIndex, embeddings.Embedder) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	index := vector.NewMemoryIndex()
	embedder := embeddings.NewMockEmbedder(8)

	return New(store, index, embedder, zerolog.Nop()), store, index, embedder
}

func get(t *testing.T, handler *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func seedCluster(t *testing.T, store *storage.Store, id, label string, itemCount int, status domain.ClusterStatus) {
	t.Helper()

	now := time.Now().UTC()

	require.NoError(t, store.UpsertCluster(context.Background(), domain.NarrativeCluster{
		ID:                    id,
		Label:                 label,
		Summary:               label + " summary",
		ItemCount:             itemCount,
		FirstSeen:             now.Add(-24 * time.Hour),
		LastUpdated:           now,
		Centroid:              []float32{1, 0, 0, 0},
		SourceDistribution:    map[string]int{"rss": itemCount},
		SentimentDistribution: map[string]int{"neutral": itemCount},
		KeyEntities:           []string{"Entity A"},
		KeyClaims:             []string{"claim one"},
		Status:                status,
	}))
}

func seedItem(t *testing.T, store *storage.Store, id string, sourceType domain.SourceType, published time.Time, clusterID string) {
	t.Helper()

	item := domain.EnrichedItem{
		ID:          id,
		SourceType:  sourceType,
		SourceName:  "seed",
		SourceURL:   fmt.Sprintf("https://example.com/%s", id),
		Title:       "Title " + id,
		PublishedAt: published,
		IngestedAt:  published,
		Language:    "en",

		Summary:   "Summary " + id,
		Entities:  []domain.Entity{},
		Claims:    []string{},
		Framing:   "straight reporting",
		Sentiment: 0.2,
		TopicTags: []string{},

		EmbeddingID:     id,
		EmbeddingModel:  "mock-embedder",
		EnrichmentModel: "test-model",
	}

	if clusterID != "" {
		label := "Label " + clusterID
		item.ClusterID = &clusterID
		item.ClusterLabel = &label
	}

	require.NoError(t, store.InsertItem(context.Background(), item))
}

func TestListClustersActiveOnly(t *testing.T) {
	handler, store, _, _ := newTestHandler(t)

	seedCluster(t, store, "c-active", "Active Narrative", 12, domain.ClusterActive)
	seedCluster(t, store, "c-emerging", "Emerging Narrative", 6, domain.ClusterEmerging)
	seedCluster(t, store, "c-faded", "Faded Narrative", 3, domain.ClusterFading)

	rec := get(t, handler, "/api/clusters")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	views := decode[[]clusterSummary](t, rec)
	require.Len(t, views, 2)

	// Largest first, faded excluded.
	assert.Equal(t, "c-active", views[0].ID)
	assert.Equal(t, "Active Narrative", views[0].Label)
	assert.Equal(t, 12, views[0].ItemCount)
	assert.Equal(t, "active", views[0].Status)
	assert.Equal(t, map[string]int{"rss": 12}, views[0].SourceDistribution)
	assert.Equal(t, "c-emerging", views[1].ID)

	// The list view carries no centroid.
	assert.NotContains(t, rec.Body.String(), "centroid")
}

func TestGetClusterDetail(t *testing.T) {
	handler, store, _, _ := newTestHandler(t)

	seedCluster(t, store, "c-1", "Grid Strain", 2, domain.ClusterActive)

	published := time.Now().UTC().Add(-2 * time.Hour)
	seedItem(t, store, "item-1", domain.SourceRSS, published, "c-1")
	seedItem(t, store, "item-2", domain.SourceGDELT, published.Add(time.Hour), "c-1")
	seedItem(t, store, "item-3", domain.SourceRSS, published, "")

	rec := get(t, handler, "/api/clusters/c-1")
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[clusterDetail](t, rec)
	assert.Equal(t, "c-1", detail.ID)
	assert.Equal(t, []float32{1, 0, 0, 0}, detail.Centroid)
	assert.Equal(t, []string{"claim one"}, detail.KeyClaims)

	require.Len(t, detail.Items, 2)
	// Newest first.
	assert.Equal(t, "item-2", detail.Items[0].ID)
	assert.Equal(t, "gdelt", detail.Items[0].SourceType)
	assert.Equal(t, "straight reporting", detail.Items[0].Framing)
	assert.Nil(t, detail.Items[0].ClusterID)
}

func TestGetClusterNotFound(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	rec := get(t, handler, "/api/clusters/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[map[string]string](t, rec)
	assert.Equal(t, "cluster not found", body["error"])
}

func TestListItems(t *testing.T) {
	handler, store, _, _ := newTestHandler(t)

	base := time.Now().UTC().Add(-3 * time.Hour)
	seedItem(t, store, "rss-1", domain.SourceRSS, base, "c-9")
	seedItem(t, store, "rss-2", domain.SourceRSS, base.Add(time.Hour), "")
	seedItem(t, store, "gdelt-1", domain.SourceGDELT, base.Add(2*time.Hour), "")

	rec := get(t, handler, "/api/items")
	require.Equal(t, http.StatusOK, rec.Code)

	views := decode[[]itemView](t, rec)
	require.Len(t, views, 3)
	assert.Equal(t, "gdelt-1", views[0].ID)

	rec = get(t, handler, "/api/items?source_type=rss&limit=1")
	views = decode[[]itemView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "rss-2", views[0].ID)

	rec = get(t, handler, "/api/items?source_type=rss")
	views = decode[[]itemView](t, rec)
	require.Len(t, views, 2)
	require.NotNil(t, views[1].ClusterID)
	assert.Equal(t, "c-9", *views[1].ClusterID)
	assert.Equal(t, "Label c-9", *views[1].ClusterLabel)
}

func TestListItemsSince(t *testing.T) {
	handler, store, _, _ := newTestHandler(t)

	base := time.Now().UTC().Add(-48 * time.Hour)
	seedItem(t, store, "old", domain.SourceRSS, base, "")
	seedItem(t, store, "new", domain.SourceRSS, base.Add(36*time.Hour), "")

	since := base.Add(24 * time.Hour).Format(time.RFC3339)

	rec := get(t, handler, "/api/items?since="+since)
	require.Equal(t, http.StatusOK, rec.Code)

	views := decode[[]itemView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "new", views[0].ID)

	rec = get(t, handler, "/api/items?since=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	handler, _, index, embedder := newTestHandler(t)

	ctx := context.Background()

	for i, text := range []string{"solar grid strain", "naval exercises", "crop futures"} {
		vec, err := embedder.Embed(ctx, text)
		require.NoError(t, err)

		id := fmt.Sprintf("doc-%d", i)
		require.NoError(t, index.Upsert(ctx, id, vec, map[string]any{
			vector.PayloadTitle:       text,
			vector.PayloadSummary:     "about " + text,
			vector.PayloadSourceType:  "rss",
			vector.PayloadSourceName:  "seed",
			vector.PayloadPublishedAt: "2026-08-20T00:00:00Z",
		}))
	}

	rec := get(t, handler, "/api/search?q=solar+grid+strain&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	hits := decode[[]searchHitView](t, rec)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-0", hits[0].ID)
	assert.Equal(t, "solar grid strain", hits[0].Title)
	assert.Equal(t, "rss", hits[0].SourceType)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchRequiresQuery(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	rec := get(t, handler, "/api/search")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[map[string]string](t, rec)
	assert.Equal(t, "q is required", body["error"])
}

func TestLatestDigest(t *testing.T) {
	handler, store, _, _ := newTestHandler(t)

	rec := get(t, handler, "/api/digest/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	empty := decode[map[string]string](t, rec)
	assert.Equal(t, "No digest available", empty["message"])

	require.NoError(t, store.InsertDigest(context.Background(), domain.DailyDigest{
		ID:           "d-1",
		GeneratedAt:  time.Now().UTC(),
		Content:      "# Briefing",
		ClusterCount: 4,
		ItemCount:    40,
		Model:        "claude-haiku-test",
	}))

	rec = get(t, handler, "/api/digest/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	digest := decode[domain.DailyDigest](t, rec)
	assert.Equal(t, "d-1", digest.ID)
	assert.Equal(t, "# Briefing", digest.Content)
	assert.Equal(t, 4, digest.ClusterCount)
}

func TestHealth(t *testing.T) {
	handler, store, index, _ := newTestHandler(t)

	ctx := context.Background()

	seedCluster(t, store, "c-1", "Narrative", 1, domain.ClusterActive)
	seedItem(t, store, "item-1", domain.SourceRSS, time.Now().UTC(), "c-1")

	require.NoError(t, store.AppendCostLog(ctx, domain.CostLogEntry{
		ItemID:       "item-1",
		Model:        "claude-haiku-test",
		InputTokens:  1000,
		OutputTokens: 200,
		CostUSD:      0.0016,
		Timestamp:    time.Now().UTC(),
	}))

	require.NoError(t, store.UpsertSourceStatus(ctx, domain.SourceStatus{
		SourceName:   "seed",
		SourceType:   domain.SourceRSS,
		ItemsFetched: 7,
		ErrorCount:   1,
	}))

	require.NoError(t, index.Upsert(ctx, "item-1", []float32{1, 0}, nil))

	rec := get(t, handler, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[healthView](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.ItemsCount)
	assert.Equal(t, 1, health.ClustersCount)
	assert.InDelta(t, 0.0016, health.DailyCost, 1e-9)
	assert.InDelta(t, 0.0016, health.TotalCost, 1e-9)

	require.Len(t, health.Sources, 1)
	assert.Equal(t, "seed", health.Sources[0].Name)
	assert.Equal(t, 7, health.Sources[0].ItemsFetched)

	assert.Equal(t, uint64(1), health.Vectors.PointsCount)
}
