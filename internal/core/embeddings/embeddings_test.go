package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func l2Norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	return math.Sqrt(sum)
}

func TestPadToTargetDimensions(t *testing.T) {
	tests := []struct {
		name   string
		input  []float32
		target int
		want   int
	}{
		{"exact", make([]float32, 384), 384, 384},
		{"pad short", []float32{1, 2, 3}, 384, 384},
		{"truncate long", make([]float32, 768), 384, 384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PadToTargetDimensions(tt.input, tt.target)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPadToTargetDimensions_PadPreservesValues(t *testing.T) {
	got := PadToTargetDimensions([]float32{1, 2}, 4)

	assert.Equal(t, []float32{1, 2, 0, 0}, got)
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})

	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)
	assert.InDelta(t, 1.0, l2Norm(got), 1e-6)
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	got := Normalize([]float32{0, 0, 0})

	assert.Equal(t, []float32{0, 0, 0}, got)
}

func TestMockEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := NewMockEmbedder(Dimensions)

	a, err := e.Embed(context.Background(), "grid strain in the west")
	require.NoError(t, err)

	b, err := e.Embed(context.Background(), "grid strain in the west")
	require.NoError(t, err)

	c, err := e.Embed(context.Background(), "completely different text")
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text must embed identically")
	assert.NotEqual(t, a, c, "different text must embed differently")
	assert.Len(t, a, Dimensions)
	assert.InDelta(t, 1.0, l2Norm(a), 0.01)
}

func TestOllamaEmbedder_PadsAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)

		resp := ollamaEmbedResponse{Embedding: []float64{3, 4}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := NewOllamaEmbedder(Config{Provider: "ollama", Model: "all-minilm", Dimensions: 4, BaseURL: server.URL})

	vec, err := e.Embed(context.Background(), "anything")
	require.NoError(t, err)

	require.Len(t, vec, 4)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.Zero(t, vec[2])
	assert.InDelta(t, 1.0, l2Norm(vec), 1e-6)
}

func TestOllamaEmbedder_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(ollamaEmbedResponse{}))
	}))
	defer server.Close()

	e := NewOllamaEmbedder(Config{Model: "all-minilm", Dimensions: 4, BaseURL: server.URL})

	_, err := e.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "sentencepiece"}, zerolog.Nop())
	require.Error(t, err)
}

func TestNew_DefaultsToMock(t *testing.T) {
	e, err := New(Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, mockModelName, e.ModelName())
}
