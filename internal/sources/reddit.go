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
	redditBaseURL     = "https://www.reddit.com"
	redditItemURLBase = "https://reddit.com"
	redditRequestsRPS = 1
	commentPrefix     = "[comment] "
	deletedAuthor     = "[deleted]"
)

var errRedditStatus = errors.New("reddit http error")

type redditSubmission struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	SelfText      string  `json:"selftext"`
	Permalink     string  `json:"permalink"`
	Author        string  `json:"author"`
	CreatedUTC    float64 `json:"created_utc"`
	Score         int     `json:"score"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	NumComments   int     `json:"num_comments"`
	IsSelf        bool    `json:"is_self"`
	LinkFlairText string  `json:"link_flair_text"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string           `json:"kind"`
			Data redditSubmission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditCommentListing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Body string `json:"body"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditSource reads subreddit listings from Reddit's public JSON endpoints.
// Reddit requires a descriptive User-Agent and throttles by IP, so requests
// go through a shared rate limiter.
type RedditSource struct {
	cfg        RedditConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     zerolog.Logger
}

var _ Source = (*RedditSource)(nil)

func NewRedditSource(cfg RedditConfig, logger zerolog.Logger) *RedditSource {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &RedditSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: fetchTimeout},
		limiter:    rate.NewLimiter(rate.Limit(redditRequestsRPS), 1),
		baseURL:    redditBaseURL,
		logger:     logger.With().Str(logKeyComponent, componentName).Str(logKeySource, "reddit").Logger(),
	}
}

func (s *RedditSource) Name() string { return "reddit" }

func (s *RedditSource) Type() domain.SourceType { return domain.SourceReddit }

func (s *RedditSource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	var all []domain.RawItem

	for _, sub := range s.cfg.Subreddits {
		submissions, err := s.fetchListing(ctx, sub)
		if err != nil {
			s.logger.Warn().Err(err).Str(logKeySubreddit, sub.Name).Msg("Reddit listing failed")
			continue
		}

		for _, submission := range submissions {
			item, ok := s.toRawItem(ctx, sub.Name, submission)
			if !ok {
				continue
			}

			all = append(all, item)
		}
	}

	s.logger.Info().Int(logKeyItems, len(all)).Msg("Reddit posts fetched")

	return all, nil
}

func (s *RedditSource) fetchListing(ctx context.Context, sub SubredditConfig) ([]redditSubmission, error) {
	sort := sub.Sort
	switch sort {
	case "hot", "new", "top":
	default:
		sort = "hot"
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(sub.Limit))
	params.Set("raw_json", "1")

	if sort == "top" {
		params.Set("t", "day")
	}

	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", s.baseURL, sub.Name, sort, params.Encode())

	var listing redditListing
	if err := s.getJSON(ctx, endpoint, &listing); err != nil {
		return nil, err
	}

	submissions := make([]redditSubmission, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		submissions = append(submissions, child.Data)
	}

	return submissions, nil
}

func (s *RedditSource) toRawItem(ctx context.Context, subreddit string, submission redditSubmission) (domain.RawItem, bool) {
	var parts []string

	if submission.Title != "" {
		parts = append(parts, submission.Title)
	}

	if submission.SelfText != "" {
		parts = append(parts, submission.SelfText)
	}

	if s.cfg.IncludeTopComments > 0 {
		parts = append(parts, s.topComments(ctx, submission.ID)...)
	}

	content := strings.Join(parts, "\n\n")
	if content == "" {
		return domain.RawItem{}, false
	}

	author := submission.Author
	if author == "" {
		author = deletedAuthor
	}

	item := domain.NewRawItem(domain.SourceReddit, "reddit:r/"+subreddit, redditItemURLBase+submission.Permalink)
	item.Title = submission.Title
	item.ContentText = content
	item.Author = author
	item.PublishedAt = time.Unix(int64(submission.CreatedUTC), 0).UTC()
	item.Metadata = map[string]any{
		"subreddit":       subreddit,
		"score":           submission.Score,
		"upvote_ratio":    submission.UpvoteRatio,
		"num_comments":    submission.NumComments,
		"is_self":         submission.IsSelf,
		"link_flair_text": submission.LinkFlairText,
	}

	return item, true
}

// topComments fetches the first top-level comments of a submission.
// Failures are quietly skipped; comments enrich content, nothing more.
func (s *RedditSource) topComments(ctx context.Context, submissionID string) []string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(s.cfg.IncludeTopComments))
	params.Set("raw_json", "1")

	endpoint := fmt.Sprintf("%s/comments/%s.json?%s", s.baseURL, submissionID, params.Encode())

	var listings []redditCommentListing
	if err := s.getJSON(ctx, endpoint, &listings); err != nil {
		s.logger.Debug().Err(err).Str("submission_id", submissionID).Msg("Comment fetch failed")
		return nil
	}

	if len(listings) < 2 {
		return nil
	}

	var comments []string

	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" || child.Data.Body == "" {
			continue
		}

		comments = append(comments, commentPrefix+child.Data.Body)

		if len(comments) >= s.cfg.IncludeTopComments {
			break
		}
	}

	return comments
}

func (s *RedditSource) getJSON(ctx context.Context, endpoint string, target any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf(wrapCreateRequest, err)
	}

	req.Header.Set(headerUserAgent, s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(wrapHTTPStatusFmt, errRedditStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
