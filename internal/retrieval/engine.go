package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fluxrank/fluxrank/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrEmptyQuery is returned when a run is requested for a blank query.
var ErrEmptyQuery = errors.New("empty query")

// Engine ties the dispatcher and fuser into one entry point: dispatch the
// query to every lane under its tier budgets, then fuse whatever survived.
// Upstream orchestrators that own authentication and response framing call
// Run and nothing else.
type Engine struct {
	dispatcher *Dispatcher
	fuser      *Fuser
	classifier Classifier            // Optional tier classification for raw queries
	metrics    *telemetry.RunMetrics // Optional run telemetry collector
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClassifier sets an optional complexity classifier. When set and no
// explicit tier is provided in RunOptions, the classifier picks the budget
// row from query characteristics.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithMetrics sets an optional run metrics collector. When set, tier
// distribution, lane failures, and zero-result runs are tracked.
func WithMetrics(m *telemetry.RunMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a fusion engine over the given dispatcher and fuser.
// Returns an error if either is nil.
func NewEngine(dispatcher *Dispatcher, fuser *Fuser, opts ...EngineOption) (*Engine, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", ErrNilDependency)
	}
	if fuser == nil {
		return nil, fmt.Errorf("%w: fuser is required", ErrNilDependency)
	}
	e := &Engine{dispatcher: dispatcher, fuser: fuser}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunOptions configures a single fusion run.
type RunOptions struct {
	// Complexity selects the budget row. Empty means classify (when a
	// classifier is configured) or fall back to technical.
	Complexity Complexity

	// Constraints are lane-specific filters, opaque to the dispatcher.
	Constraints []Constraint

	// Now is the reference time for recency boosting. Zero means
	// time.Now(); tests pin it for determinism.
	Now time.Time
}

// Run executes one fusion run: classify (if needed), dispatch all lanes
// concurrently, fuse. A run with zero successful lanes returns a valid empty
// FusedResult, not an error.
func (e *Engine) Run(ctx context.Context, query string, opts RunOptions) (*FusedResult, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	tier := opts.Complexity
	if tier == "" {
		if e.classifier != nil {
			tier = e.classifier.Classify(ctx, query)
		} else {
			tier = ComplexityTechnical
		}
	}
	tier = ParseComplexity(string(tier))

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	laneResults := e.dispatcher.Dispatch(ctx, query, tier, opts.Constraints)
	fused := e.fuser.Fuse(laneResults, now)

	slog.Debug("fusion run complete",
		slog.String("run_id", fused.RunID),
		slog.String("tier", string(tier)),
		slog.Int("lanes", fused.Metadata.TotalLanes),
		slog.Int("successful_lanes", fused.Metadata.SuccessfulLanes),
		slog.Int("results", fused.TotalResults),
		slog.Duration("duration", time.Since(start)))

	e.recordMetrics(query, tier, laneResults, fused, time.Since(start))
	return fused, nil
}

func (e *Engine) recordMetrics(query string, tier Complexity, laneResults []*Result, fused *FusedResult, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	statuses := make(map[string]string, len(laneResults))
	for _, lr := range laneResults {
		statuses[string(lr.Lane)] = string(lr.Status)
	}
	e.metrics.Record(telemetry.RunEvent{
		Query:        query,
		Tier:         string(tier),
		LaneStatuses: statuses,
		ResultCount:  fused.TotalResults,
		Latency:      latency,
		Timestamp:    time.Now(),
	})
}
