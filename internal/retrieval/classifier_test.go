package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Complexity
	}{
		// Multimedia intent
		{"video keyword", "watch the starship launch video", ComplexityMultimedia},
		{"photo keyword", "photos of the northern lights", ComplexityMultimedia},
		{"media file extension", "conference-keynote.mp4", ComplexityMultimedia},
		{"podcast keyword", "best engineering podcast episodes", ComplexityMultimedia},

		// Research intent
		{"compare prefix", "compare postgres and mysql replication", ComplexityResearch},
		{"versus phrasing", "monolith versus microservices for small teams", ComplexityResearch},
		{"impact phrasing", "impact of remote work on productivity", ComplexityResearch},
		{"long multi-clause question", "how do distributed consensus protocols handle network partitions and leader failures", ComplexityResearch},

		// Technical
		{"technical vocabulary", "grpc api latency tuning", ComplexityTechnical},
		{"error code token", "ERR_CONNECTION_REFUSED", ComplexityTechnical},
		{"camelCase identifier", "getUserById", ComplexityTechnical},
		{"snake_case identifier", "max_open_conns", ComplexityTechnical},
		{"ticker symbol", "$AAPL", ComplexityTechnical},
		{"mid-length statement defaults technical", "configure nginx reverse proxy with tls", ComplexityTechnical},
		{"empty query", "", ComplexityTechnical},

		// Simple
		{"what-is question", "what is reciprocal rank fusion", ComplexitySimple},
		{"who-is question", "who is the ceo of nvidia", ComplexitySimple},
		{"short lookup", "paris weather", ComplexitySimple},
	}

	classifier := NewPatternClassifier()
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(ctx, tt.query))
		})
	}
}

func TestPatternClassifier_CacheNormalizesWhitespaceAndCase(t *testing.T) {
	classifier := NewPatternClassifier()
	ctx := context.Background()

	first := classifier.Classify(ctx, "what is RRF")
	second := classifier.Classify(ctx, "  What   is   rrf  ")

	assert.Equal(t, first, second)
	// One cache entry covers both spellings.
	assert.Equal(t, 1, classifier.cache.Len())
}

func TestParseComplexity(t *testing.T) {
	assert.Equal(t, ComplexitySimple, ParseComplexity("simple"))
	assert.Equal(t, ComplexityResearch, ParseComplexity("research"))
	assert.Equal(t, ComplexityMultimedia, ParseComplexity("multimedia"))
	assert.Equal(t, ComplexityTechnical, ParseComplexity("technical"))

	// Unknown tiers fall back to technical.
	assert.Equal(t, ComplexityTechnical, ParseComplexity(""))
	assert.Equal(t, ComplexityTechnical, ParseComplexity("SIMPLE"))
	assert.Equal(t, ComplexityTechnical, ParseComplexity("deep"))
}
