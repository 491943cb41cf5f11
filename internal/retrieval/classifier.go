package retrieval

import (
	"context"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultClassifierCacheSize bounds the classification LRU cache. Queries
// repeat heavily in practice, so a modest cache absorbs most lookups.
const DefaultClassifierCacheSize = 10000

// Classifier assigns a complexity tier to a query. Callers that already know
// the tier bypass classification entirely; the classifier is the convenience
// path for raw queries.
type Classifier interface {
	// Classify analyzes a query and returns its complexity tier.
	// Implementations never fail; unclassifiable queries default to
	// technical.
	Classify(ctx context.Context, query string) Complexity
}

// Compiled at package init for performance.
var (
	// Media intent: "watch the launch video", "photos of ...".
	multimediaPattern = regexp.MustCompile(`(?i)\b(video|videos|image|images|photo|photos|picture|pictures|watch|footage|podcast|audio|stream|trailer|clip)\b`)

	// Media file references.
	mediaFilePattern = regexp.MustCompile(`(?i)\.(mp4|mov|mkv|webm|mp3|wav|flac|png|jpe?g|gif|svg)$`)

	// Research intent: comparative and analytical phrasing.
	researchPattern = regexp.MustCompile(`(?i)^(compare|analyze|analyse|research|evaluate|investigate|survey|review)\b|\b(impact of|history of|literature|trade-?offs?|implications|state of the art|versus|vs\.?)\b`)

	// Technical identifiers and codes.
	errorCodePattern      = regexp.MustCompile(`(?i)^(ERR_\w+|E\d{4,5}|[A-Z]{2,}\d{3,}|\w+Exception)$`)
	camelCasePattern      = regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`)
	snakeCasePattern      = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
	tickerPattern         = regexp.MustCompile(`^\$?[A-Z]{1,5}$`)
	technicalVocabPattern = regexp.MustCompile(`(?i)\b(api|protocol|algorithm|latency|throughput|kernel|compiler|runtime|schema|index|benchmark|regression|stack ?trace|config)\b`)

	// Simple lookups: short factual questions.
	simpleQuestionPattern = regexp.MustCompile(`(?i)^(what is|who is|when did|when was|where is|define)\s`)
)

// PatternClassifier classifies queries into complexity tiers using regex
// pattern matching, with an LRU cache over normalized queries.
type PatternClassifier struct {
	cache *lru.Cache[string, Complexity]
}

// NewPatternClassifier creates a pattern-based complexity classifier.
func NewPatternClassifier() *PatternClassifier {
	cache, _ := lru.New[string, Complexity](DefaultClassifierCacheSize)
	return &PatternClassifier{cache: cache}
}

// Classify determines the complexity tier for a query. Never fails; empty or
// unclassifiable queries default to technical, matching the budget-table
// fallback row.
func (p *PatternClassifier) Classify(_ context.Context, query string) Complexity {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return ComplexityTechnical
	}

	if tier, ok := p.cache.Get(key); ok {
		return tier
	}

	tier := p.classify(strings.TrimSpace(query))
	p.cache.Add(key, tier)
	return tier
}

func (p *PatternClassifier) classify(query string) Complexity {
	// Media intent wins outright: it selects dedicated lane budgets.
	if multimediaPattern.MatchString(query) || mediaFilePattern.MatchString(query) {
		return ComplexityMultimedia
	}

	if p.isResearchQuery(query) {
		return ComplexityResearch
	}

	if p.isTechnicalQuery(query) {
		return ComplexityTechnical
	}

	words := len(strings.Fields(query))
	if simpleQuestionPattern.MatchString(query) || words <= 3 {
		return ComplexitySimple
	}

	return ComplexityTechnical
}

func (p *PatternClassifier) isResearchQuery(query string) bool {
	if researchPattern.MatchString(query) {
		return true
	}
	// Long multi-clause questions need the deeper budget row.
	return len(strings.Fields(query)) >= 10
}

func (p *PatternClassifier) isTechnicalQuery(query string) bool {
	if technicalVocabPattern.MatchString(query) {
		return true
	}
	// Identifier-shaped single tokens.
	if !strings.Contains(query, " ") {
		return errorCodePattern.MatchString(query) ||
			camelCasePattern.MatchString(query) ||
			snakeCasePattern.MatchString(query) ||
			tickerPattern.MatchString(query)
	}
	return false
}
