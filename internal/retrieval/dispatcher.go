package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	fluxerrors "github.com/fluxrank/fluxrank/internal/errors"
)

// Dispatcher fans a query out to every configured lane concurrently, each
// under its own per-tier budget, and collects one Result per lane regardless
// of how many succeed. Lanes never observe each other; no retries happen
// within a run.
type Dispatcher struct {
	lanes   []Lane
	budgets BudgetTable
}

// NewDispatcher creates a dispatcher over the given lanes and budget table.
// The budget table must already be validated against the lane set.
func NewDispatcher(lanes []Lane, budgets BudgetTable) *Dispatcher {
	return &Dispatcher{lanes: lanes, budgets: budgets}
}

// Lanes returns the configured lane IDs in dispatch order.
func (d *Dispatcher) Lanes() []LaneID {
	ids := make([]LaneID, len(d.lanes))
	for i, l := range d.lanes {
		ids[i] = l.ID()
	}
	return ids
}

// Dispatch runs all lanes concurrently for one query and returns their
// results in configured lane order. It returns once every lane has answered
// or exhausted its budget; partial failure is not an error, and an all-empty
// result set is valid.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, tier Complexity, constraints []Constraint) []*Result {
	results := make([]*Result, len(d.lanes))

	g := new(errgroup.Group)
	for i, lane := range d.lanes {
		i, lane := i, lane
		g.Go(func() error {
			results[i] = d.dispatchLane(ctx, lane, query, tier, constraints)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// laneOutcome carries a lane's answer across the abandonment boundary.
type laneOutcome struct {
	items []*Item
	err   error
}

// dispatchLane invokes one lane under its budget deadline. The lane call runs
// in its own goroutine with a buffered channel so that a lane which ignores
// ctx can still be abandoned: once the deadline fires the dispatcher moves on
// and any late answer is discarded, never merged into the finished run.
func (d *Dispatcher) dispatchLane(ctx context.Context, lane Lane, query string, tier Complexity, constraints []Constraint) *Result {
	budget := d.budgets.Lookup(lane.ID(), tier)
	lctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	ch := make(chan laneOutcome, 1)
	go func() {
		items, err := lane.Retrieve(lctx, query, tier, constraints)
		ch <- laneOutcome{items: items, err: err}
	}()

	select {
	case out := <-ch:
		elapsed := time.Since(start).Milliseconds()
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return timeoutResult(lane.ID(), elapsed, budget)
			}
			laneErr := fluxerrors.Wrap(fluxerrors.ErrCodeLaneFailed, out.err)
			slog.Warn("lane failed",
				slog.String("lane", string(lane.ID())),
				slog.String("error", laneErr.Error()),
				slog.Int64("latency_ms", elapsed))
			return &Result{
				Lane:      lane.ID(),
				Status:    StatusError,
				Items:     []*Item{},
				LatencyMS: elapsed,
				Err:       laneErr.Error(),
			}
		}
		items := out.items
		if items == nil {
			items = []*Item{}
		}
		for _, it := range items {
			it.Lane = lane.ID()
		}
		slog.Debug("lane completed",
			slog.String("lane", string(lane.ID())),
			slog.Int("items", len(items)),
			slog.Int64("latency_ms", elapsed))
		return &Result{
			Lane:      lane.ID(),
			Status:    StatusSuccess,
			Items:     items,
			LatencyMS: elapsed,
		}

	case <-lctx.Done():
		elapsed := time.Since(start).Milliseconds()
		if errors.Is(lctx.Err(), context.DeadlineExceeded) {
			return timeoutResult(lane.ID(), elapsed, budget)
		}
		// Parent context cancelled before the lane budget expired.
		return &Result{
			Lane:      lane.ID(),
			Status:    StatusError,
			Items:     []*Item{},
			LatencyMS: elapsed,
			Err:       fluxerrors.Wrap(fluxerrors.ErrCodeLaneFailed, lctx.Err()).Error(),
		}
	}
}

func timeoutResult(lane LaneID, elapsedMS int64, budget time.Duration) *Result {
	slog.Warn("lane timed out",
		slog.String("lane", string(lane)),
		slog.Duration("budget", budget),
		slog.Int64("latency_ms", elapsedMS))
	return &Result{
		Lane:      lane,
		Status:    StatusTimeout,
		Items:     []*Item{},
		LatencyMS: elapsedMS,
		Err: fluxerrors.New(fluxerrors.ErrCodeLaneTimeout,
			"budget exceeded after "+budget.String(), nil).Error(),
	}
}
