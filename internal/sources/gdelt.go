package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

const (
	gdeltBaseURL     = "https://api.gdeltproject.org/api/v2/doc/doc"
	gdeltTimeLayout  = "20060102150405"
	seendateLayout   = "20060102T150405"
	seendateLen      = 15
	gdeltMaxRecords  = 250
	gdeltLookback    = 24 * time.Hour
	gdeltRequestsRPS = 1
)

var errGDELTStatus = errors.New("gdelt http error")

type gdeltArticle struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	SeenDate      string  `json:"seendate"`
	Domain        string  `json:"domain"`
	Language      string  `json:"language"`
	SourceCountry string  `json:"sourcecountry"`
	Tone          float64 `json:"tone"`
}

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

// GDELTSource queries the GDELT DOC 2.0 article list API. Article bodies are
// not available, so content falls back to the title.
type GDELTSource struct {
	queries    []GDELTQueryConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     zerolog.Logger
}

var _ Source = (*GDELTSource)(nil)

func NewGDELTSource(cfg GDELTConfig, logger zerolog.Logger) *GDELTSource {
	return &GDELTSource{
		queries:    cfg.Queries,
		httpClient: &http.Client{Timeout: fetchTimeout},
		limiter:    rate.NewLimiter(rate.Limit(gdeltRequestsRPS), 1),
		baseURL:    gdeltBaseURL,
		logger:     logger.With().Str(logKeyComponent, componentName).Str(logKeySource, "gdelt").Logger(),
	}
}

func (s *GDELTSource) Name() string { return "gdelt" }

func (s *GDELTSource) Type() domain.SourceType { return domain.SourceGDELT }

func (s *GDELTSource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	end := time.Now().UTC()

	return s.fetchWindow(ctx, end.Add(-gdeltLookback), end, false)
}

// Backfill fetches historical articles for seeding the rolling window.
func (s *GDELTSource) Backfill(ctx context.Context, days int) ([]domain.RawItem, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	items, err := s.fetchWindow(ctx, start, end, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int(logKeyItems, len(items)).Int("days", days).Msg("GDELT backfill complete")

	return items, nil
}

func (s *GDELTSource) fetchWindow(ctx context.Context, start, end time.Time, backfill bool) ([]domain.RawItem, error) {
	var all []domain.RawItem

	for _, query := range s.queries {
		if err := s.limiter.Wait(ctx); err != nil {
			return all, err
		}

		items, err := s.fetchQuery(ctx, query, start, end, backfill)
		if err != nil {
			s.logger.Warn().Err(err).Str(logKeyQuery, query.Name).Msg("GDELT query failed")
			continue
		}

		all = append(all, items...)
	}

	return all, nil
}

func (s *GDELTSource) fetchQuery(ctx context.Context, query GDELTQueryConfig, start, end time.Time, backfill bool) ([]domain.RawItem, error) {
	params := url.Values{}
	params.Set("query", buildGDELTQuery(query.Keywords))
	params.Set("mode", "artlist")
	params.Set("format", "json")
	params.Set("maxrecords", strconv.Itoa(gdeltMaxRecords))
	params.Set("sort", "datedesc")
	params.Set("startdatetime", start.Format(gdeltTimeLayout))
	params.Set("enddatetime", end.Format(gdeltTimeLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf(wrapCreateRequest, err)
	}

	req.Header.Set(headerUserAgent, defaultUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(wrapHTTPStatusFmt, errGDELTStatus, resp.StatusCode)
	}

	// GDELT answers throttled requests with plain text, not JSON.
	var decoded gdeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	items := make([]domain.RawItem, 0, len(decoded.Articles))

	for _, article := range decoded.Articles {
		if article.URL == "" || article.Title == "" {
			continue
		}

		item := domain.NewRawItem(domain.SourceGDELT, "gdelt:"+query.Name, article.URL)
		item.Title = article.Title
		item.ContentText = article.Title
		item.PublishedAt = parseSeenDate(article.SeenDate)
		item.Metadata = map[string]any{
			"domain":        article.Domain,
			"language":      article.Language,
			"sourcecountry": article.SourceCountry,
			"tone":          article.Tone,
			"query_name":    query.Name,
		}

		if backfill {
			item.Metadata["backfill"] = true
		}

		items = append(items, item)
	}

	s.logger.Info().Str(logKeyQuery, query.Name).Int(logKeyItems, len(items)).Msg("GDELT query fetched")

	return items, nil
}

// buildGDELTQuery joins keywords with OR, quoting multi-word phrases.
func buildGDELTQuery(keywords []string) string {
	quoted := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			kw = `"` + kw + `"`
		}

		quoted = append(quoted, kw)
	}

	return strings.Join(quoted, " OR ")
}

// parseSeenDate reads GDELT's YYYYMMDDTHHMMSSZ stamps, falling back to now.
func parseSeenDate(seendate string) time.Time {
	if len(seendate) >= seendateLen {
		if t, err := time.Parse(seendateLayout, seendate[:seendateLen]); err == nil {
			return t
		}
	}

	return time.Now().UTC()
}
