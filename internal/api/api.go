// Package api serves the read-only HTTP API over the metadata store and the
// vector index. It is mounted on the observability port under /api/.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/storage"
	"github.com/civilian24601/amon-hen/internal/vector"
)

// Store is the metadata surface the API reads from.
type Store interface {
	GetActiveClusters(ctx context.Context) ([]domain.NarrativeCluster, error)
	GetCluster(ctx context.Context, id string) (*domain.NarrativeCluster, error)
	GetItemsByCluster(ctx context.Context, clusterID string) ([]domain.EnrichedItem, error)
	GetItems(ctx context.Context, since *time.Time, limit int, sourceType string) ([]domain.EnrichedItem, error)
	GetLatestDigest(ctx context.Context) (*domain.DailyDigest, error)
	CountItems(ctx context.Context) (int, error)
	CountClusters(ctx context.Context) (int, error)
	DailyCostUSD(ctx context.Context, t time.Time) (float64, error)
	TotalCostUSD(ctx context.Context) (float64, error)
	GetAllSourceStatus(ctx context.Context) ([]domain.SourceStatus, error)
}

// VectorIndex answers semantic search and reports collection state.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, limit int, sourceType string, since *time.Time) ([]vector.SearchHit, error)
	Info(ctx context.Context) (vector.CollectionInfo, error)
}

// Embedder turns a search query into a vector in item embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Handler routes the read API.
type Handler struct {
	store    Store
	index    VectorIndex
	embedder Embedder
	logger   zerolog.Logger
	mux      *http.ServeMux
}

// New builds the read API handler.
func New(store Store, index VectorIndex, embedder Embedder, logger zerolog.Logger) *Handler {
	h := &Handler{
		store:    store,
		index:    index,
		embedder: embedder,
		logger:   logger.With().Str(logKeyComponent, componentName).Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/clusters", h.listClusters)
	mux.HandleFunc("GET /api/clusters/{id}", h.getCluster)
	mux.HandleFunc("GET /api/items", h.listItems)
	mux.HandleFunc("GET /api/search", h.search)
	mux.HandleFunc("GET /api/digest/latest", h.latestDigest)
	mux.HandleFunc("GET /api/health", h.health)
	h.mux = mux

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type clusterSummary struct {
	ID                    string         `json:"id"`
	Label                 string         `json:"label"`
	Summary               string         `json:"summary"`
	ItemCount             int            `json:"item_count"`
	Status                string         `json:"status"`
	FirstSeen             time.Time      `json:"first_seen"`
	LastUpdated           time.Time      `json:"last_updated"`
	SourceDistribution    map[string]int `json:"source_distribution"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	KeyEntities           []string       `json:"key_entities"`
}

type clusterDetail struct {
	clusterSummary
	Centroid  []float32  `json:"centroid"`
	KeyClaims []string   `json:"key_claims"`
	Items     []itemView `json:"items"`
}

type itemView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	SourceType  string    `json:"source_type"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   float64   `json:"sentiment"`
	Framing     string    `json:"framing,omitempty"`

	ClusterID    *string `json:"cluster_id,omitempty"`
	ClusterLabel *string `json:"cluster_label,omitempty"`
}

type searchHitView struct {
	ID          string  `json:"id"`
	Score       float32 `json:"score"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	SourceType  string  `json:"source_type"`
	SourceName  string  `json:"source_name"`
	PublishedAt string  `json:"published_at"`
}

type sourceStatusView struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	LastFetch    *time.Time `json:"last_fetch"`
	ItemsFetched int        `json:"items_fetched"`
	ErrorCount   int        `json:"error_count"`
}

type healthView struct {
	Status        string                `json:"status"`
	ItemsCount    int                   `json:"items_count"`
	ClustersCount int                   `json:"clusters_count"`
	DailyCost     float64               `json:"daily_cost"`
	TotalCost     float64               `json:"total_cost"`
	Sources       []sourceStatusView    `json:"sources"`
	Vectors       vector.CollectionInfo `json:"vectors"`
}

func (h *Handler) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.store.GetActiveClusters(r.Context())
	if err != nil {
		h.serverError(w, "list clusters", err)

		return
	}

	views := make([]clusterSummary, 0, len(clusters))
	for i := range clusters {
		views = append(views, summarizeCluster(&clusters[i]))
	}

	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getCluster(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cluster, err := h.store.GetCluster(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "cluster not found")

			return
		}

		h.serverError(w, "get cluster", err)

		return
	}

	items, err := h.store.GetItemsByCluster(r.Context(), id)
	if err != nil {
		h.serverError(w, "get cluster items", err)

		return
	}

	if len(items) > clusterItemLimit {
		items = items[:clusterItemLimit]
	}

	detail := clusterDetail{
		clusterSummary: summarizeCluster(cluster),
		Centroid:       cluster.Centroid,
		KeyClaims:      cluster.KeyClaims,
		Items:          make([]itemView, 0, len(items)),
	}

	for i := range items {
		view := viewItem(&items[i])
		// Membership is implied by the route; the denormalised cluster
		// columns add nothing here.
		view.ClusterID = nil
		view.ClusterLabel = nil
		detail.Items = append(detail.Items, view)
	}

	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultItemLimit, maxItemLimit)
	sourceType := r.URL.Query().Get("source_type")

	var since *time.Time

	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "since must be RFC 3339")

			return
		}

		since = &parsed
	}

	items, err := h.store.GetItems(r.Context(), since, limit, sourceType)
	if err != nil {
		h.serverError(w, "list items", err)

		return
	}

	views := make([]itemView, 0, len(items))
	for i := range items {
		view := viewItem(&items[i])
		view.Framing = ""
		views = append(views, view)
	}

	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "q is required")

		return
	}

	limit := queryInt(r, "limit", defaultSearchLimit, maxSearchLimit)

	queryVec, err := h.embedder.Embed(r.Context(), query)
	if err != nil {
		h.serverError(w, "embed query", err)

		return
	}

	hits, err := h.index.Search(r.Context(), queryVec, limit, "", nil)
	if err != nil {
		h.serverError(w, "vector search", err)

		return
	}

	views := make([]searchHitView, 0, len(hits))
	for _, hit := range hits {
		views = append(views, searchHitView{
			ID:          hit.ID,
			Score:       hit.Score,
			Title:       payloadString(hit.Payload, vector.PayloadTitle),
			Summary:     payloadString(hit.Payload, vector.PayloadSummary),
			SourceType:  payloadString(hit.Payload, vector.PayloadSourceType),
			SourceName:  payloadString(hit.Payload, vector.PayloadSourceName),
			PublishedAt: payloadString(hit.Payload, vector.PayloadPublishedAt),
		})
	}

	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) latestDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := h.store.GetLatestDigest(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeJSON(w, http.StatusOK, map[string]string{"message": "No digest available"})

			return
		}

		h.serverError(w, "latest digest", err)

		return
	}

	h.writeJSON(w, http.StatusOK, digest)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemCount, err := h.store.CountItems(ctx)
	if err != nil {
		h.serverError(w, "count items", err)

		return
	}

	clusterCount, err := h.store.CountClusters(ctx)
	if err != nil {
		h.serverError(w, "count clusters", err)

		return
	}

	dailyCost, err := h.store.DailyCostUSD(ctx, time.Now().UTC())
	if err != nil {
		h.serverError(w, "daily cost", err)

		return
	}

	totalCost, err := h.store.TotalCostUSD(ctx)
	if err != nil {
		h.serverError(w, "total cost", err)

		return
	}

	statuses, err := h.store.GetAllSourceStatus(ctx)
	if err != nil {
		h.serverError(w, "source status", err)

		return
	}

	sources := make([]sourceStatusView, 0, len(statuses))
	for _, st := range statuses {
		sources = append(sources, sourceStatusView{
			Name:         st.SourceName,
			Type:         string(st.SourceType),
			LastFetch:    st.LastFetchAt,
			ItemsFetched: st.ItemsFetched,
			ErrorCount:   st.ErrorCount,
		})
	}

	info, err := h.index.Info(ctx)
	if err != nil {
		h.serverError(w, "vector info", err)

		return
	}

	h.writeJSON(w, http.StatusOK, healthView{
		Status:        "ok",
		ItemsCount:    itemCount,
		ClustersCount: clusterCount,
		DailyCost:     dailyCost,
		TotalCost:     totalCost,
		Sources:       sources,
		Vectors:       info,
	})
}

func summarizeCluster(cluster *domain.NarrativeCluster) clusterSummary {
	return clusterSummary{
		ID:                    cluster.ID,
		Label:                 cluster.Label,
		Summary:               cluster.Summary,
		ItemCount:             cluster.ItemCount,
		Status:                string(cluster.Status),
		FirstSeen:             cluster.FirstSeen,
		LastUpdated:           cluster.LastUpdated,
		SourceDistribution:    cluster.SourceDistribution,
		SentimentDistribution: cluster.SentimentDistribution,
		KeyEntities:           cluster.KeyEntities,
	}
}

func viewItem(item *domain.EnrichedItem) itemView {
	return itemView{
		ID:           item.ID,
		Title:        item.Title,
		Summary:      item.Summary,
		SourceType:   string(item.SourceType),
		SourceName:   item.SourceName,
		SourceURL:    item.SourceURL,
		PublishedAt:  item.PublishedAt,
		Sentiment:    item.Sentiment,
		Framing:      item.Framing,
		ClusterID:    item.ClusterID,
		ClusterLabel: item.ClusterLabel,
	}
}

// queryInt parses a positive integer query parameter, applying the default
// when absent or malformed and clamping to ceiling.
func queryInt(r *http.Request, key string, def, ceiling int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}

	if n > ceiling {
		return ceiling
	}

	return n
}

func payloadString(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}

	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error().Err(err).Str(logKeyOp, op).Msg("request failed")
	h.writeError(w, http.StatusInternalServerError, "internal error")
}
