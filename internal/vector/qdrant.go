package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// QdrantIndex stores points in a Qdrant collection over gRPC.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     zerolog.Logger
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant and ensures the collection exists with
// a cosine-distance vector config and payload indexes for filtering.
func NewQdrantIndex(ctx context.Context, cfg Config, logger zerolog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	index := &QdrantIndex{
		client:     client,
		collection: collection,
		dimensions: uint64(dimensions),
		logger:     logger,
	}

	if err := index.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return index, nil
}

func resolveEndpoint(cfg Config) (string, int, bool, error) {
	if cfg.Mode == ModeCloud {
		parsed, err := url.Parse(cfg.URL)
		if err != nil || parsed.Hostname() == "" {
			return "", 0, false, fmt.Errorf("qdrant url %q must look like https://host:port", cfg.URL)
		}

		port := defaultQdrantPort

		if p := parsed.Port(); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil {
				return "", 0, false, fmt.Errorf("qdrant url port: %w", err)
			}
		}

		return parsed.Hostname(), port, parsed.Scheme != "http", nil
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = defaultQdrantPort
	}

	return host, port, false, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}

	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Keyword and datetime indexes back the search filters.
	fieldIndexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{PayloadSourceType, qdrant.FieldType_FieldTypeKeyword},
		{PayloadPublishedAt, qdrant.FieldType_FieldTypeDatetime},
	}

	for _, fi := range fieldIndexes {
		_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      fi.field,
			FieldType:      fi.kind.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("create field index %s: %w", fi.field, err)
		}
	}

	q.logger.Info().Str(logKeyCollection, q.collection).Msg("Created Qdrant collection")

	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(payload),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}

	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, limit int, sourceType string, since *time.Time) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         buildFilter(sourceType, since),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	hits := make([]SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, SearchHit{
			ID:      p.GetId().GetUuid(),
			Score:   p.GetScore(),
			Payload: payloadToMap(p.GetPayload()),
		})
	}

	return hits, nil
}

func (q *QdrantIndex) ScrollAll(ctx context.Context, since *time.Time) ([]string, [][]float32, error) {
	request := &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         buildFilter("", since),
		Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
		WithVectors:    qdrant.NewWithVectors(true),
	}

	var (
		ids     []string
		vectors [][]float32
	)

	// The high-level Scroll drops the pagination cursor, so page through
	// the points service directly.
	for {
		resp, err := q.client.GetPointsClient().Scroll(ctx, request)
		if err != nil {
			return nil, nil, fmt.Errorf("scroll points: %w", err)
		}

		for _, p := range resp.GetResult() {
			ids = append(ids, p.GetId().GetUuid())
			vectors = append(vectors, p.GetVectors().GetVector().GetData())
		}

		next := resp.GetNextPageOffset()
		if next == nil {
			break
		}

		request.Offset = next
	}

	return ids, vectors, nil
}

func (q *QdrantIndex) GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            toPointIDs(ids),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}

	out := make(map[string][]float32, len(points))
	for _, p := range points {
		out[p.GetId().GetUuid()] = p.GetVectors().GetVector().GetData()
	}

	return out, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(toPointIDs(ids)...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}

	return nil
}

func (q *QdrantIndex) Info(ctx context.Context) (CollectionInfo, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("get collection info: %w", err)
	}

	return CollectionInfo{Name: q.collection, PointsCount: info.GetPointsCount()}, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func buildFilter(sourceType string, since *time.Time) *qdrant.Filter {
	var must []*qdrant.Condition

	if sourceType != "" {
		must = append(must, qdrant.NewMatch(PayloadSourceType, sourceType))
	}

	if since != nil {
		must = append(must, qdrant.NewDatetimeRange(PayloadPublishedAt, &qdrant.DatetimeRange{
			Gte: timestamppb.New(since.UTC()),
		}))
	}

	if len(must) == 0 {
		return nil
	}

	return &qdrant.Filter{Must: must}
}

func toPointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qdrant.NewID(id))
	}

	return out
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}

	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()

		list := make([]any, 0, len(values))
		for _, item := range values {
			list = append(list, valueToAny(item))
		}

		return list
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()

		m := make(map[string]any, len(fields))
		for key, item := range fields {
			m[key] = valueToAny(item)
		}

		return m
	default:
		return nil
	}
}
