package vector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

type memoryPoint struct {
	vector  []float32
	payload map[string]any
}

// MemoryIndex is a process-local Index. It keeps insertion order so scroll
// results are deterministic.
type MemoryIndex struct {
	mu     sync.RWMutex
	order  []string
	points map[string]memoryPoint
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]memoryPoint)}
}

var _ Index = (*MemoryIndex)(nil)

func (m *MemoryIndex) Upsert(_ context.Context, id string, vector []float32, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.points[id]; !exists {
		m.order = append(m.order, id)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	pl := make(map[string]any, len(payload))
	for k, v := range payload {
		pl[k] = v
	}

	m.points[id] = memoryPoint{vector: vec, payload: pl}

	return nil
}

func (m *MemoryIndex) Search(_ context.Context, query []float32, limit int, sourceType string, since *time.Time) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]SearchHit, 0, len(m.points))

	for _, id := range m.order {
		point := m.points[id]
		if !m.matches(point, sourceType, since) {
			continue
		}

		hits = append(hits, SearchHit{
			ID:      id,
			Score:   CosineSimilarity(query, point.vector),
			Payload: copyPayload(point.payload),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

func (m *MemoryIndex) ScrollAll(_ context.Context, since *time.Time) ([]string, [][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.order))
	vectors := make([][]float32, 0, len(m.order))

	for _, id := range m.order {
		point := m.points[id]
		if !m.matches(point, "", since) {
			continue
		}

		ids = append(ids, id)
		vectors = append(vectors, point.vector)
	}

	return ids, vectors, nil
}

func (m *MemoryIndex) GetByIDs(_ context.Context, ids []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]float32, len(ids))

	for _, id := range ids {
		if point, ok := m.points[id]; ok {
			out[id] = point.vector
		}
	}

	return out, nil
}

func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.points[id]; ok {
			drop[id] = struct{}{}
			delete(m.points, id)
		}
	}

	if len(drop) == 0 {
		return nil
	}

	kept := m.order[:0]
	for _, id := range m.order {
		if _, dropped := drop[id]; !dropped {
			kept = append(kept, id)
		}
	}
	m.order = kept

	return nil
}

func (m *MemoryIndex) Info(_ context.Context) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return CollectionInfo{Name: DefaultCollection, PointsCount: uint64(len(m.points))}, nil
}

func (m *MemoryIndex) Close() error { return nil }

func (m *MemoryIndex) matches(point memoryPoint, sourceType string, since *time.Time) bool {
	if sourceType != "" {
		st, _ := point.payload[PayloadSourceType].(string)
		if st != sourceType {
			return false
		}
	}

	if since != nil {
		raw, _ := point.payload[PayloadPublishedAt].(string)

		published, err := domain.ParseTime(raw)
		if err != nil || published.Before(*since) {
			return false
		}
	}

	return true
}

func copyPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	return out
}
