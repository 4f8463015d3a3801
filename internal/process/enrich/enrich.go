// Package enrich turns raw items into enriched items: one LLM call for the
// intelligence signal, one embedding over that signal, then persistence in
// the metadata store and the vector index. LLM calls are bounded by a
// semaphore and gated per item against the daily spend budget.
package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/platform/observability"
	"github.com/civilian24601/amon-hen/internal/storage"
	"github.com/civilian24601/amon-hen/internal/vector"
)

// MetaStore is the slice of the metadata store the enricher reads and
// writes through.
type MetaStore interface {
	DailyCostUSD(ctx context.Context, t time.Time) (float64, error)
	AppendCostLog(ctx context.Context, entry domain.CostLogEntry) error
	InsertItem(ctx context.Context, item domain.EnrichedItem) error
}

// LLM produces the structured intelligence signal for one raw item.
type LLM interface {
	Enrich(ctx context.Context, item domain.RawItem) (domain.EnrichmentResult, domain.CostLogEntry, error)
}

// Embedder vectorises enrichment signal text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// VectorIndex is the slice of the vector index the enricher writes to.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vec []float32, payload map[string]any) error
}

// Config bounds an enrichment run.
type Config struct {
	Concurrency    int
	DailyBudgetUSD float64
	TrackCosts     bool
}

// Enricher runs the enrichment stage of the pipeline.
type Enricher struct {
	cfg      Config
	store    MetaStore
	index    VectorIndex
	llm      LLM
	embedder Embedder
	logger   zerolog.Logger
}

// New builds an enricher. A non-positive concurrency falls back to the
// default of three in-flight LLM calls.
func New(cfg Config, store MetaStore, index VectorIndex, llmClient LLM, embedder Embedder, logger zerolog.Logger) *Enricher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &Enricher{
		cfg:      cfg,
		store:    store,
		index:    index,
		llm:      llmClient,
		embedder: embedder,
		logger:   logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// EnrichBatch enriches raw items with at most Concurrency LLM calls in
// flight. Items that trip the budget gate or fail any stage are dropped;
// the survivors come back in completion order. Cancelling the context stops
// dispatch of further items but lets in-flight work finish persisting.
func (e *Enricher) EnrichBatch(ctx context.Context, items []domain.RawItem) []domain.EnrichedItem {
	if len(items) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enriched []domain.EnrichedItem
	)

	sem := make(chan struct{}, e.cfg.Concurrency)

dispatch:
	for _, item := range items {
		select {
		case <-ctx.Done():
			e.logger.Warn().Err(ctx.Err()).Msg("enrichment cancelled, dropping remaining items")

			break dispatch
		default:
		}

		sem <- struct{}{}

		wg.Add(1)

		go func(item domain.RawItem) {
			defer wg.Done()
			defer func() { <-sem }()

			result, ok := e.processOne(ctx, item)
			if !ok {
				return
			}

			mu.Lock()
			enriched = append(enriched, result)
			mu.Unlock()
		}(item)
	}

	wg.Wait()

	e.logger.Info().
		Int(logKeyEnriched, len(enriched)).
		Int(logKeyTotal, len(items)).
		Msg("Enrichment complete")

	return enriched
}

func (e *Enricher) processOne(ctx context.Context, item domain.RawItem) (domain.EnrichedItem, bool) {
	logger := e.logger.With().Str(logKeyItemID, item.ID).Str(logKeySource, item.SourceName).Logger()

	spent, err := e.store.DailyCostUSD(ctx, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("daily cost lookup failed")
		observability.ItemsEnriched.WithLabelValues(statusStoreError).Inc()

		return domain.EnrichedItem{}, false
	}

	observability.DailySpendUSD.Set(spent)

	if spent >= e.cfg.DailyBudgetUSD {
		logger.Warn().
			Float64(logKeySpentUSD, spent).
			Float64(logKeyBudgetUSD, e.cfg.DailyBudgetUSD).
			Msg("daily budget exceeded, skipping item")
		observability.ItemsEnriched.WithLabelValues(statusBudget).Inc()

		return domain.EnrichedItem{}, false
	}

	start := time.Now()

	result, entry, err := e.llm.Enrich(ctx, item)
	if err != nil {
		logger.Error().Err(err).Msg("LLM enrichment failed")
		observability.ItemsEnriched.WithLabelValues(statusLLMError).Inc()

		return domain.EnrichedItem{}, false
	}

	observability.EnrichmentRequestDuration.Observe(time.Since(start).Seconds())
	observability.EnrichmentCostUSD.Add(entry.CostUSD)

	// The LLM call is already paid for, so bookkeeping and storage proceed
	// even when the batch context is being torn down.
	persistCtx := context.WithoutCancel(ctx)

	if e.cfg.TrackCosts {
		if err = e.store.AppendCostLog(persistCtx, entry); err != nil {
			logger.Error().Err(err).Msg("cost log append failed")
			observability.ItemsEnriched.WithLabelValues(statusStoreError).Inc()

			return domain.EnrichedItem{}, false
		}
	}

	embedding, err := e.embedder.Embed(ctx, domain.SignalText(result))
	if err != nil {
		logger.Error().Err(err).Msg("embedding failed")
		observability.EmbeddingRequests.WithLabelValues(e.embedder.ModelName(), embedStatusError).Inc()
		observability.ItemsEnriched.WithLabelValues(statusEmbedError).Inc()

		return domain.EnrichedItem{}, false
	}

	observability.EmbeddingRequests.WithLabelValues(e.embedder.ModelName(), embedStatusOK).Inc()

	enrichedItem := domain.EnrichedItem{
		ID:          item.ID,
		SourceType:  item.SourceType,
		SourceName:  item.SourceName,
		SourceURL:   item.SourceURL,
		Title:       item.Title,
		PublishedAt: item.PublishedAt,
		IngestedAt:  item.IngestedAt,
		Language:    item.Language,

		Summary:   result.Summary,
		Entities:  result.Entities,
		Claims:    result.Claims,
		Framing:   result.Framing,
		Sentiment: result.Sentiment,
		TopicTags: result.TopicTags,

		EmbeddingID:    item.ID,
		EmbeddingModel: e.embedder.ModelName(),

		EnrichmentModel:   entry.Model,
		EnrichmentCostUSD: entry.CostUSD,
	}

	if err = e.store.InsertItem(persistCtx, enrichedItem); err != nil {
		if errors.Is(err, storage.ErrDuplicateURL) {
			logger.Debug().Str(logKeyURL, item.SourceURL).Msg("item already stored, skipping")
			observability.ItemsEnriched.WithLabelValues(statusDuplicate).Inc()
		} else {
			logger.Error().Err(err).Msg("item insert failed")
			observability.ItemsEnriched.WithLabelValues(statusStoreError).Inc()
		}

		return domain.EnrichedItem{}, false
	}

	payload := map[string]any{
		vector.PayloadSourceType:  string(item.SourceType),
		vector.PayloadSourceName:  item.SourceName,
		vector.PayloadPublishedAt: domain.FormatTime(item.PublishedAt),
		vector.PayloadTitle:       item.Title,
		vector.PayloadSummary:     result.Summary,
	}

	if err = e.index.Upsert(persistCtx, item.ID, embedding, payload); err != nil {
		logger.Error().Err(err).Msg("vector upsert failed")
		observability.ItemsEnriched.WithLabelValues(statusVectorError).Inc()

		return domain.EnrichedItem{}, false
	}

	observability.ItemsEnriched.WithLabelValues(statusEnriched).Inc()

	return enrichedItem, true
}
