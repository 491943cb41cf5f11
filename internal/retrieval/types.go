// Package retrieval implements multi-source retrieval fusion: a query is
// fanned out to independent retrieval lanes under per-tier time budgets, and
// the surviving ranked lists are merged with Reciprocal Rank Fusion (RRF).
package retrieval

import (
	"context"
	"time"
)

// Complexity is the coarse query classification that selects the budget row
// used for every lane in a run.
type Complexity string

const (
	ComplexitySimple     Complexity = "simple"
	ComplexityTechnical  Complexity = "technical"
	ComplexityResearch   Complexity = "research"
	ComplexityMultimedia Complexity = "multimedia"
)

// LaneID identifies one retrieval backend. The set is extensible; fusion does
// not depend on the concrete lanes configured.
type LaneID string

const (
	LaneKeyword        LaneID = "keyword"
	LaneVector         LaneID = "vector"
	LaneKnowledgeGraph LaneID = "knowledge_graph"
	LaneNews           LaneID = "news"
	LaneMarkets        LaneID = "markets"
)

// Status is the per-lane outcome of a dispatch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Constraint is a lane-specific filter. The dispatcher passes constraints
// through untouched; each lane interprets only its own.
type Constraint struct {
	Lane  LaneID `json:"lane,omitempty"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// Item is one candidate result produced by a lane. It is owned by a single
// fusion run and never persisted.
type Item struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`

	// PublishedAt is the publication timestamp as reported by the lane.
	// Kept as a string: lanes disagree on formats, and unparseable values
	// simply forgo the recency boost.
	PublishedAt string `json:"published_at,omitempty"`

	Author         string         `json:"author,omitempty"`
	RelevanceScore float64        `json:"relevance_score"`
	AuthorityScore float64        `json:"authority_score"`
	WordCount      int            `json:"word_count,omitempty"`
	Category       string         `json:"category,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`

	// Lane records which lane produced this item. Set by the dispatcher.
	Lane LaneID `json:"lane,omitempty"`

	// FusionScore is the combined RRF + diversity + recency score.
	// Populated by Fuse; zero before fusion.
	FusionScore float64 `json:"fusion_score"`
}

// Result is the outcome of one lane for one run. Created by the dispatcher
// when the lane answers or its budget expires, consumed once by Fuse.
type Result struct {
	Lane      LaneID  `json:"lane"`
	Status    Status  `json:"status"`
	Items     []*Item `json:"items"`
	LatencyMS int64   `json:"latency_ms"`
	Err       string  `json:"error,omitempty"`
}

// Lane is the contract every retrieval backend satisfies. Retrieve must
// honor ctx cancellation, and must report "no results" as an empty-item
// success, never as an error.
type Lane interface {
	// ID returns the stable lane identifier.
	ID() LaneID

	// Retrieve runs the lane's backend for query under ctx. Items are
	// returned ranked by the lane's own relevance ordering.
	Retrieve(ctx context.Context, query string, complexity Complexity, constraints []Constraint) ([]*Item, error)
}

// FusionMetadata echoes the parameters a fusion run actually used, for
// auditability and test pinning.
type FusionMetadata struct {
	TotalLanes      int     `json:"total_lanes"`
	SuccessfulLanes int     `json:"successful_lanes"`
	RRFConstant     int     `json:"rrf_constant"`
	DiversityBoost  float64 `json:"diversity_boost"`
	RecencyBoost    float64 `json:"recency_boost"`
}

// Citation is a read-only projection of a ranked item. Never mutated after
// creation; missing optional fields render as empty strings.
type Citation struct {
	ID             int     `json:"id"`
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Domain         string  `json:"domain"`
	Published      string  `json:"published,omitempty"`
	Author         string  `json:"author,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	AuthorityScore float64 `json:"authority_score"`
}

// Disagreement flags a pair of domains whose content may conflict. Purely
// advisory; never blocks the ranked output.
type Disagreement struct {
	Source1      string  `json:"source_1"`
	Source2      string  `json:"source_2"`
	ConflictType string  `json:"conflict_type"`
	Confidence   float64 `json:"confidence"`
}

// FusedResult is the engine's output for one run. Citations correspond 1:1,
// in order, to Results.
type FusedResult struct {
	RunID         string          `json:"run_id"`
	Results       []*Item         `json:"results"`
	Metadata      FusionMetadata  `json:"fusion_metadata"`
	Citations     []*Citation     `json:"citations"`
	Disagreements []*Disagreement `json:"disagreements"`
	TotalResults  int             `json:"total_results"`
	UniqueDomains int             `json:"unique_domains"`
	FusionTimeMS  int64           `json:"fusion_time_ms"`
}

// ParseComplexity normalizes a tier string. Unrecognized tiers fall back to
// technical, matching the budget-table default row.
func ParseComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexitySimple, ComplexityTechnical, ComplexityResearch, ComplexityMultimedia:
		return Complexity(s)
	default:
		return ComplexityTechnical
	}
}

// ParsePublishedAt attempts the timestamp formats lanes are known to emit.
// Returns the zero time and false when the value is missing or unparseable.
func ParsePublishedAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.RFC1123, time.RFC1123Z, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
