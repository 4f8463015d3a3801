// Package vector stores item embeddings and answers similarity queries.
// A Qdrant-backed index serves local and cloud deployments; an in-memory
// index backs tests and zero-dependency runs.
package vector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// SearchHit is a single similarity search result.
type SearchHit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo reports the state of the backing collection.
type CollectionInfo struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
}

// Index is the vector store used by the enrichment and clustering pipelines.
type Index interface {
	// Upsert writes a point, replacing any point with the same id.
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error

	// Search returns the points nearest to query by cosine similarity,
	// optionally filtered by source type and minimum publish time.
	Search(ctx context.Context, query []float32, limit int, sourceType string, since *time.Time) ([]SearchHit, error)

	// ScrollAll returns every point id and vector, optionally restricted to
	// points published at or after since. Used by the clusterer.
	ScrollAll(ctx context.Context, since *time.Time) ([]string, [][]float32, error)

	// GetByIDs returns vectors for the given point ids. Missing ids are
	// silently absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error)

	// Delete removes the given points.
	Delete(ctx context.Context, ids []string) error

	// Info returns collection name and point count.
	Info(ctx context.Context) (CollectionInfo, error)

	Close() error
}

// Config selects and parameterizes the index backend.
type Config struct {
	Mode       string
	Host       string
	Port       int
	URL        string
	APIKey     string
	Collection string
	Dimensions int
}

// New builds an Index from config. Memory mode needs no external service;
// local and cloud modes connect to Qdrant and ensure the collection exists.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Index, error) {
	log := logger.With().Str(logKeyComponent, componentName).Logger()

	switch cfg.Mode {
	case ModeMemory, "":
		log.Info().Str(logKeyMode, ModeMemory).Msg("Using in-memory vector index")
		return NewMemoryIndex(), nil
	case ModeLocal, ModeCloud:
		return NewQdrantIndex(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown vector index mode %q", cfg.Mode)
	}
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-norm inputs score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
