package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// RSSSource fetches all configured RSS/Atom feeds concurrently. A failing
// feed is logged and skipped; it never sinks the whole batch.
type RSSSource struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
	logger zerolog.Logger
}

var _ Source = (*RSSSource)(nil)

func NewRSSSource(feeds []FeedConfig, logger zerolog.Logger) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: fetchTimeout}
	parser.UserAgent = defaultUserAgent

	return &RSSSource{
		feeds:  feeds,
		parser: parser,
		logger: logger.With().Str(logKeyComponent, componentName).Str(logKeySource, "rss").Logger(),
	}
}

func (s *RSSSource) Name() string { return "rss" }

func (s *RSSSource) Type() domain.SourceType { return domain.SourceRSS }

func (s *RSSSource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	results := make([][]domain.RawItem, len(s.feeds))

	eg, egCtx := errgroup.WithContext(ctx)

	for i, feed := range s.feeds {
		eg.Go(func() error {
			items, err := s.fetchFeed(egCtx, feed)
			if err != nil {
				s.logger.Warn().Err(err).
					Str(logKeyFeed, feed.Name).
					Str(logKeyURL, feed.URL).
					Msg("RSS feed failed")

				return nil
			}

			results[i] = items

			return nil
		})
	}

	_ = eg.Wait()

	var all []domain.RawItem
	for _, items := range results {
		all = append(all, items...)
	}

	return all, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, cfg FeedConfig) ([]domain.RawItem, error) {
	feed, err := s.parser.ParseURLWithContext(cfg.URL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(feed.Items))

	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}

		content := StripHTML(entry.Description)
		if content == "" {
			content = StripHTML(entry.Content)
		}

		if content == "" {
			content = entry.Title
		}

		item := domain.NewRawItem(domain.SourceRSS, cfg.Name, entry.Link)
		item.Title = entry.Title
		item.ContentText = content
		item.PublishedAt = entryPublishedAt(entry)
		item.Metadata = map[string]any{
			"category": cfg.Category,
			"feed_url": cfg.URL,
			"tags":     entryTags(entry),
		}

		if entry.Author != nil {
			item.Author = entry.Author.Name
		}

		items = append(items, item)
	}

	s.logger.Info().Str(logKeyFeed, cfg.Name).Int(logKeyItems, len(items)).Msg("RSS feed fetched")

	return items, nil
}

func entryPublishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}

	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}

	for _, raw := range []string{entry.Published, entry.Updated} {
		if raw == "" {
			continue
		}

		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}

	return time.Now().UTC()
}

func entryTags(entry *gofeed.Item) []string {
	if len(entry.Categories) == 0 {
		return []string{}
	}

	return entry.Categories
}
