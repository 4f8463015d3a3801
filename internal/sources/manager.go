// Package sources ingests raw items from RSS feeds, GDELT, Bluesky, and
// Reddit, records per-source health, and filters out already-stored URLs.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// Source is one ingestion family (rss, gdelt, bluesky, reddit).
type Source interface {
	Name() string
	Type() domain.SourceType
	Fetch(ctx context.Context) ([]domain.RawItem, error)
}

// Repository is the storage surface the manager needs.
type Repository interface {
	ItemURLExists(ctx context.Context, url string) (bool, error)
	UpsertSourceStatus(ctx context.Context, status domain.SourceStatus) error
}

// Manager fans out to all configured sources, records fetch status per
// family, and returns only items not yet stored.
type Manager struct {
	sources []Source
	store   Repository
	logger  zerolog.Logger
}

func NewManager(store Repository, logger zerolog.Logger, srcs ...Source) *Manager {
	return &Manager{
		sources: srcs,
		store:   store,
		logger:  logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// FromConfig builds a Manager with every enabled source family.
func FromConfig(cfg Config, store Repository, logger zerolog.Logger) *Manager {
	var srcs []Source

	if len(cfg.RSS) > 0 {
		srcs = append(srcs, NewRSSSource(cfg.RSS, logger))
	}

	if cfg.GDELT.Enabled && len(cfg.GDELT.Queries) > 0 {
		srcs = append(srcs, NewGDELTSource(cfg.GDELT, logger))
	}

	if cfg.Bluesky.Enabled && len(cfg.Bluesky.Keywords) > 0 {
		srcs = append(srcs, NewBlueskySource(cfg.Bluesky, logger))
	}

	if cfg.Reddit.Enabled && len(cfg.Reddit.Subreddits) > 0 {
		srcs = append(srcs, NewRedditSource(cfg.Reddit, logger))
	}

	return NewManager(store, logger, srcs...)
}

// Run fetches from all sources concurrently and returns the new items.
func (m *Manager) Run(ctx context.Context) ([]domain.RawItem, error) {
	now := time.Now().UTC()

	results := make([][]domain.RawItem, len(m.sources))
	fetchErrs := make([]error, len(m.sources))

	eg, egCtx := errgroup.WithContext(ctx)

	for i, src := range m.sources {
		eg.Go(func() error {
			results[i], fetchErrs[i] = src.Fetch(egCtx)
			return nil
		})
	}

	_ = eg.Wait()

	var all []domain.RawItem

	for i, src := range m.sources {
		if err := fetchErrs[i]; err != nil {
			m.logger.Error().Err(err).Str(logKeySource, src.Name()).Msg("Source failed")
			m.recordStatus(ctx, domain.SourceStatus{
				SourceName:  src.Name(),
				SourceType:  src.Type(),
				LastFetchAt: &now,
				ErrorCount:  1,
				LastError:   err.Error(),
			})

			continue
		}

		items := results[i]
		m.logger.Info().Str(logKeySource, src.Name()).Int(logKeyItems, len(items)).Msg("Source fetched")
		m.recordStatus(ctx, domain.SourceStatus{
			SourceName:    src.Name(),
			SourceType:    src.Type(),
			LastFetchAt:   &now,
			LastSuccessAt: &now,
			ItemsFetched:  len(items),
		})

		all = append(all, items...)
	}

	fresh, err := m.Deduplicate(ctx, all)
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Int("fetched", len(all)).
		Int("new", len(fresh)).
		Int("duplicates", len(all)-len(fresh)).
		Msg("Ingestion complete")

	return fresh, nil
}

// Deduplicate drops items whose source URL is already stored.
func (m *Manager) Deduplicate(ctx context.Context, items []domain.RawItem) ([]domain.RawItem, error) {
	fresh := make([]domain.RawItem, 0, len(items))

	for _, item := range items {
		exists, err := m.store.ItemURLExists(ctx, item.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("check url exists: %w", err)
		}

		if !exists {
			fresh = append(fresh, item)
		}
	}

	return fresh, nil
}

func (m *Manager) recordStatus(ctx context.Context, status domain.SourceStatus) {
	if err := m.store.UpsertSourceStatus(ctx, status); err != nil {
		m.logger.Warn().Err(err).Str(logKeySource, status.SourceName).Msg("Failed to record source status")
	}
}
