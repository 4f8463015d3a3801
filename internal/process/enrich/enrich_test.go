package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/storage"
	"github.com/civilian24601/amon-hen/internal/vector"
)

var errStageDown = errors.New("stage down")

type fakeStore struct {
	mu        sync.Mutex
	dailyCost float64
	costErr   error
	insertErr error
	costs     []domain.CostLogEntry
	items     []domain.EnrichedItem
}

func (f *fakeStore) DailyCostUSD(_ context.Context, _ time.Time) (float64, error) {
	return f.dailyCost, f.costErr
}

func (f *fakeStore) AppendCostLog(_ context.Context, entry domain.CostLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.costs = append(f.costs, entry)

	return nil
}

func (f *fakeStore) InsertItem(_ context.Context, item domain.EnrichedItem) error {
	if f.insertErr != nil {
		return f.insertErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, item)

	return nil
}

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLLM) Enrich(_ context.Context, item domain.RawItem) (domain.EnrichmentResult, domain.CostLogEntry, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return domain.EnrichmentResult{}, domain.CostLogEntry{}, f.err
	}

	result := domain.EnrichmentResult{
		Summary:   "summary of " + item.Title,
		Entities:  []domain.Entity{{Name: "Acme Corp", Type: domain.EntityOrg, Role: domain.RoleSubject, Aliases: []string{}}},
		Claims:    []string{"Acme Corp announced a merger"},
		Framing:   "business reporting",
		Sentiment: 0.2,
		TopicTags: []string{"business"},
	}

	entry := domain.CostLogEntry{
		ItemID:       item.ID,
		Model:        "test-model",
		InputTokens:  100,
		OutputTokens: 50,
		CostUSD:      0.001,
		Timestamp:    time.Now().UTC(),
	}

	return result, entry, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}

	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }

type failingIndex struct{}

func (failingIndex) Upsert(_ context.Context, _ string, _ []float32, _ map[string]any) error {
	return errStageDown
}

func testRawItem(title string) domain.RawItem {
	item := domain.NewRawItem(domain.SourceRSS, "test-feed", "https://example.com/"+title)
	item.Title = title
	item.ContentText = "content of " + title
	item.PublishedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return item
}

func newTestEnricher(store *fakeStore, index VectorIndex, llm *fakeLLM, embedder *fakeEmbedder) *Enricher {
	cfg := Config{Concurrency: 2, DailyBudgetUSD: 2.0, TrackCosts: true}

	return New(cfg, store, index, llm, embedder, zerolog.Nop())
}

func TestEnricher_EnrichBatch(t *testing.T) {
	store := &fakeStore{}
	index := vector.NewMemoryIndex()
	llm := &fakeLLM{}

	e := newTestEnricher(store, index, llm, &fakeEmbedder{})

	items := []domain.RawItem{testRawItem("alpha"), testRawItem("beta"), testRawItem("gamma")}

	enriched := e.EnrichBatch(context.Background(), items)

	require.Len(t, enriched, 3)
	assert.Equal(t, 3, llm.callCount())
	assert.Len(t, store.items, 3)
	assert.Len(t, store.costs, 3)

	byID := make(map[string]domain.EnrichedItem, len(enriched))
	for _, it := range enriched {
		byID[it.ID] = it
	}

	got, ok := byID[items[0].ID]
	require.True(t, ok)
	assert.Equal(t, "summary of alpha", got.Summary)
	assert.Equal(t, items[0].ID, got.EmbeddingID)
	assert.Equal(t, "fake-embedder", got.EmbeddingModel)
	assert.Equal(t, "test-model", got.EnrichmentModel)
	assert.InDelta(t, 0.001, got.EnrichmentCostUSD, 1e-9)
	assert.Equal(t, domain.SourceRSS, got.SourceType)

	info, err := index.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.PointsCount)

	vectors, err := index.GetByIDs(context.Background(), []string{items[0].ID})
	require.NoError(t, err)
	require.Contains(t, vectors, items[0].ID)

	hits, err := index.Search(context.Background(), []float32{1, 0, 0}, 1, string(domain.SourceRSS), nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "test-feed", hits[0].Payload[vector.PayloadSourceName])
}

func TestEnricher_BudgetExceededSkipsAll(t *testing.T) {
	store := &fakeStore{dailyCost: 2.5}
	llm := &fakeLLM{}

	e := newTestEnricher(store, vector.NewMemoryIndex(), llm, &fakeEmbedder{})

	enriched := e.EnrichBatch(context.Background(), []domain.RawItem{testRawItem("alpha"), testRawItem("beta")})

	assert.Empty(t, enriched)
	assert.Zero(t, llm.callCount())
	assert.Empty(t, store.items)
	assert.Empty(t, store.costs)
}

func TestEnricher_LLMFailureDropsItem(t *testing.T) {
	store := &fakeStore{}

	e := newTestEnricher(store, vector.NewMemoryIndex(), &fakeLLM{err: errStageDown}, &fakeEmbedder{})

	enriched := e.EnrichBatch(context.Background(), []domain.RawItem{testRawItem("alpha")})

	assert.Empty(t, enriched)
	assert.Empty(t, store.items)
	assert.Empty(t, store.costs)
}

func TestEnricher_EmbedFailureKeepsCostLog(t *testing.T) {
	store := &fakeStore{}
	index := vector.NewMemoryIndex()

	e := newTestEnricher(store, index, &fakeLLM{}, &fakeEmbedder{err: errStageDown})

	enriched := e.EnrichBatch(context.Background(), []domain.RawItem{testRawItem("alpha")})

	assert.Empty(t, enriched)
	assert.Empty(t, store.items)

	// The LLM call happened before the embedding failed, so its spend stays
	// on the ledger.
	assert.Len(t, store.costs, 1)

	info, err := index.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.PointsCount)
}

func TestEnricher_TrackCostsDisabled(t *testing.T) {
	store := &fakeStore{}

	cfg := Config{Concurrency: 2, DailyBudgetUSD: 2.0, TrackCosts: false}
	e := New(cfg, store, vector.NewMemoryIndex(), &fakeLLM{}, &fakeEmbedder{}, zerolog.Nop())

	enriched := e.EnrichBatch(context.Background(), []domain.RawItem{testRawItem("alpha")})

	require.Len(t, enriched, 1)
	assert.Len(t, store.items, 1)
	assert.Empty(t, store.costs)
}

func TestEnricher_DuplicateInsertDropsItem(t *testing.T) {
	store := &fakeStore{insertErr: storage.ErrDuplicateURL}
	index := vector.NewMemoryIndex()

	e := newTestEnricher(store, index, &fakeLLM{}, &fakeEmbedder{})

	enriched := e.EnrichBatch(context.Background(), []domain.RawItem{testRawItem("alpha")})

	assert.Empty(t, enriched)
	assert.Len(t, store.costs, 1)

	info, err := index.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.PointsCount)
}

func TestEnricher_VectorFailureDropsFromResult(t *testing.T) {
	store := &fakeStore{}

	e := newTestEnricher(store, failingIndex{}, &fakeLLM{}, &fakeEmbedder{})

	enriched := e.EnrichBatch(context.Background(), []domain.RawItem{testRawItem("alpha")})

	assert.Empty(t, enriched)

	// The metadata row survives a vector write failure.
	assert.Len(t, store.items, 1)
}

func TestEnricher_CancelledContextStopsDispatch(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{}

	e := newTestEnricher(store, vector.NewMemoryIndex(), llm, &fakeEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enriched := e.EnrichBatch(ctx, []domain.RawItem{testRawItem("alpha"), testRawItem("beta")})

	assert.Empty(t, enriched)
	assert.Zero(t, llm.callCount())
}

func TestEnricher_DefaultConcurrency(t *testing.T) {
	e := New(Config{}, &fakeStore{}, vector.NewMemoryIndex(), &fakeLLM{}, &fakeEmbedder{}, zerolog.Nop())

	assert.Equal(t, defaultConcurrency, e.cfg.Concurrency)
}
