package vector

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder turns text into a fixed-dimension vector. Production deployments
// plug in a model-backed embedder; HashEmbedder is the dependency-free
// fallback with deterministic output.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashDimensions is the vector size of the hash embedder.
const HashDimensions = 256

// Token and n-gram contribution weights.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// HashEmbedder generates embeddings by hashing tokens and character n-grams
// into a fixed-size vector. No network, no model download; deterministic with
// reduced semantic quality.
type HashEmbedder struct{}

// NewHashEmbedder creates a hash-based embedder.
func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

// Dimensions implements Embedder.
func (e *HashEmbedder) Dimensions() int { return HashDimensions }

// Embed implements Embedder. Empty input yields the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, HashDimensions)
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return vec, nil
	}

	tokens := tokenRegex.FindAllString(trimmed, -1)
	for _, token := range tokens {
		vec[hashToIndex(token, HashDimensions)] += tokenWeight
		for i := 0; i+ngramSize <= len(token); i++ {
			vec[hashToIndex(token[i:i+ngramSize], HashDimensions)] += ngramWeight
		}
	}

	normalizeInPlace(vec)
	return vec, nil
}

// hashToIndex uses FNV-64 to map a string to a vector index.
func hashToIndex(s string, size int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
