package vector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxrank/fluxrank/internal/retrieval"
)

func newTestLane(t *testing.T) *Lane {
	t.Helper()
	lane, err := New(NewHashEmbedder(), 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lane.Close() })

	require.NoError(t, lane.Index(context.Background(), []*Document{
		{
			ID:          "vec-1",
			Title:       "Vector Search with HNSW Graphs",
			Content:     "Approximate nearest neighbor search over embeddings using hierarchical navigable small worlds.",
			URL:         "https://arxiv.example.org/hnsw",
			Domain:      "arxiv.example.org",
			PublishedAt: "2025-07-14",
			Authority:   0.9,
		},
		{
			ID:      "vec-2",
			Title:   "Sourdough Starter Maintenance",
			Content: "Feed the starter twice daily and keep it warm.",
			URL:     "https://bread.example.com/starter",
			Domain:  "bread.example.com",
		},
	}))
	return lane
}

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "vector search embeddings")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Vector   SEARCH embeddings")
	require.NoError(t, err)

	require.Len(t, a, HashDimensions)
	assert.Equal(t, HashDimensions, e.Dimensions())

	// Case and whitespace normalize to the same vector.
	assert.Equal(t, a, b)

	// Unit length.
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEmbedder_EmptyInputIsZeroVector(t *testing.T) {
	vec, err := NewHashEmbedder().Embed(context.Background(), "   ")

	require.NoError(t, err)
	require.Len(t, vec, HashDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestNew_RequiresEmbedder(t *testing.T) {
	_, err := New(nil, 10)
	assert.Error(t, err)
}

func TestLane_Retrieve_NearestNeighborFirst(t *testing.T) {
	lane := newTestLane(t)

	items, err := lane.Retrieve(context.Background(), "nearest neighbor search over embeddings",
		retrieval.ComplexityTechnical, nil)

	require.NoError(t, err)
	require.Len(t, items, 2)

	// Token overlap pulls the vector-search paper closest.
	assert.Equal(t, retrieval.LaneVector, lane.ID())
	assert.Equal(t, "vec-1", items[0].ID)
	assert.Greater(t, items[0].RelevanceScore, items[1].RelevanceScore)

	for _, it := range items {
		assert.GreaterOrEqual(t, it.RelevanceScore, 0.0)
		assert.LessOrEqual(t, it.RelevanceScore, 1.0)
		require.Contains(t, it.Extra, "similarity")
		assert.Equal(t, it.RelevanceScore, it.Extra["similarity"])
	}
}

func TestLane_Retrieve_EmptyGraphAndBlankQuery(t *testing.T) {
	lane, err := New(NewHashEmbedder(), 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lane.Close() })

	items, err := lane.Retrieve(context.Background(), "anything", retrieval.ComplexityTechnical, nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	populated := newTestLane(t)
	items, err = populated.Retrieve(context.Background(), "  ", retrieval.ComplexityTechnical, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLane_Retrieve_CancelledContext(t *testing.T) {
	lane := newTestLane(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lane.Retrieve(ctx, "embeddings", retrieval.ComplexityTechnical, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLane_Index_ReindexReplacesDocument(t *testing.T) {
	lane := newTestLane(t)
	ctx := context.Background()

	require.NoError(t, lane.Index(ctx, []*Document{{
		ID:      "vec-1",
		Title:   "Vector Search with HNSW Graphs, Revised",
		Content: "Updated discussion of nearest neighbor embedding search.",
		Domain:  "arxiv.example.org",
	}}))

	assert.Equal(t, 2, lane.Count())

	items, err := lane.Retrieve(ctx, "nearest neighbor embedding search", retrieval.ComplexityTechnical, nil)
	require.NoError(t, err)

	// The orphaned old node never resurfaces; vec-1 appears once with the
	// revised title.
	seen := 0
	for _, it := range items {
		if it.ID == "vec-1" {
			seen++
			assert.Equal(t, "Vector Search with HNSW Graphs, Revised", it.Title)
		}
	}
	assert.Equal(t, 1, seen)
}

func TestLane_ClosedLaneErrors(t *testing.T) {
	lane, err := New(NewHashEmbedder(), 0)
	require.NoError(t, err)
	require.NoError(t, lane.Close())

	_, err = lane.Retrieve(context.Background(), "x", retrieval.ComplexitySimple, nil)
	assert.Error(t, err)

	err = lane.Index(context.Background(), []*Document{{ID: "x"}})
	assert.Error(t, err)
}
