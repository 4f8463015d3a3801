package sources

import (
	"bytes"
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

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

const (
	blueskyPublicAPI  = "https://public.api.bsky.app"
	blueskyAuthAPI    = "https://bsky.social"
	searchPostsPath   = "/xrpc/app.bsky.feed.searchPosts"
	createSessionPath = "/xrpc/com.atproto.server.createSession"
	maxSearchLimit    = 100
)

var errBlueskyStatus = errors.New("bluesky http error")

type blueskyAuthor struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

type blueskyRecord struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type blueskyPost struct {
	URI         string        `json:"uri"`
	Author      blueskyAuthor `json:"author"`
	Record      blueskyRecord `json:"record"`
	ReplyCount  int           `json:"replyCount"`
	RepostCount int           `json:"repostCount"`
	LikeCount   int           `json:"likeCount"`
}

type blueskySearchResponse struct {
	Posts []blueskyPost `json:"posts"`
}

type blueskySession struct {
	AccessJWT string `json:"accessJwt"`
}

// BlueskySource searches Bluesky posts by keyword over the AT Protocol HTTP
// API. With credentials it authenticates against bsky.social; without, it
// uses the public AppView, which serves searchPosts unauthenticated.
type BlueskySource struct {
	cfg        BlueskyConfig
	httpClient *http.Client
	publicURL  string
	authURL    string
	logger     zerolog.Logger
}

var _ Source = (*BlueskySource)(nil)

func NewBlueskySource(cfg BlueskyConfig, logger zerolog.Logger) *BlueskySource {
	return &BlueskySource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: fetchTimeout},
		publicURL:  blueskyPublicAPI,
		authURL:    blueskyAuthAPI,
		logger:     logger.With().Str(logKeyComponent, componentName).Str(logKeySource, "bluesky").Logger(),
	}
}

func (s *BlueskySource) Name() string { return "bluesky" }

func (s *BlueskySource) Type() domain.SourceType { return domain.SourceBluesky }

func (s *BlueskySource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	baseURL := s.publicURL
	token := ""

	if s.cfg.Handle != "" && s.cfg.AppPassword != "" {
		jwt, err := s.createSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("bluesky login: %w", err)
		}

		baseURL = s.authURL
		token = jwt
	}

	perKeyword := s.cfg.MaxPostsPerCycle
	if perKeyword > maxSearchLimit {
		perKeyword = maxSearchLimit
	}

	seen := make(map[string]struct{})

	var all []domain.RawItem

	for _, keyword := range s.cfg.Keywords {
		posts, err := s.searchPosts(ctx, baseURL, token, keyword, perKeyword)
		if err != nil {
			s.logger.Warn().Err(err).Str(logKeyKeyword, keyword).Msg("Bluesky search failed")
			continue
		}

		for _, post := range posts {
			if _, dup := seen[post.URI]; dup {
				continue
			}
			seen[post.URI] = struct{}{}

			if post.Record.Text == "" {
				continue
			}

			all = append(all, s.toRawItem(post, keyword))

			if len(all) >= s.cfg.MaxPostsPerCycle {
				break
			}
		}

		if len(all) >= s.cfg.MaxPostsPerCycle {
			break
		}
	}

	s.logger.Info().Int(logKeyItems, len(all)).Msg("Bluesky posts fetched")

	return all, nil
}

func (s *BlueskySource) createSession(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"identifier": s.cfg.Handle,
		"password":   s.cfg.AppPassword,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL+createSessionPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf(wrapCreateRequest, err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(wrapHTTPStatusFmt, errBlueskyStatus, resp.StatusCode)
	}

	var session blueskySession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}

	return session.AccessJWT, nil
}

func (s *BlueskySource) searchPosts(ctx context.Context, baseURL, token, keyword string, limit int) ([]blueskyPost, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+searchPostsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf(wrapCreateRequest, err)
	}

	req.Header.Set(headerUserAgent, defaultUserAgent)

	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(wrapHTTPStatusFmt, errBlueskyStatus, resp.StatusCode)
	}

	var decoded blueskySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return decoded.Posts, nil
}

func (s *BlueskySource) toRawItem(post blueskyPost, keyword string) domain.RawItem {
	handle := post.Author.Handle
	if handle == "" {
		handle = "unknown"
	}

	display := post.Author.DisplayName
	if display == "" {
		display = handle
	}

	rkey := post.URI
	if idx := strings.LastIndex(post.URI, "/"); idx >= 0 {
		rkey = post.URI[idx+1:]
	}

	postURL := fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)

	item := domain.NewRawItem(domain.SourceBluesky, "bluesky", postURL)
	item.ContentText = post.Record.Text
	item.Author = fmt.Sprintf("%s (@%s)", display, handle)
	item.PublishedAt = parseCreatedAt(post.Record.CreatedAt)
	item.Metadata = map[string]any{
		"keyword": keyword,
		"likes":   post.LikeCount,
		"reposts": post.RepostCount,
		"replies": post.ReplyCount,
		"handle":  handle,
	}

	return item
}

func parseCreatedAt(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}

	t, err := domain.ParseTime(raw)
	if err != nil {
		return time.Now().UTC()
	}

	return t
}
