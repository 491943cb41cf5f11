package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluxerrors "github.com/fluxrank/fluxrank/internal/errors"
)

// fakeLane is a scriptable lane for dispatcher tests.
type fakeLane struct {
	id        LaneID
	items     []*Item
	err       error
	delay     time.Duration
	ignoreCtx bool // sleep through the deadline instead of honoring ctx
}

func (f *fakeLane) ID() LaneID { return f.id }

func (f *fakeLane) Retrieve(ctx context.Context, _ string, _ Complexity, _ []Constraint) ([]*Item, error) {
	if f.ignoreCtx {
		time.Sleep(f.delay)
		return f.items, f.err
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

// uniformBudgets builds a table granting every lane the same budget across
// all tiers.
func uniformBudgets(lanes []Lane, budget time.Duration) BudgetTable {
	table := BudgetTable{}
	for _, l := range lanes {
		table[l.ID()] = map[Complexity]time.Duration{
			ComplexitySimple:     budget,
			ComplexityTechnical:  budget,
			ComplexityResearch:   budget,
			ComplexityMultimedia: budget,
		}
	}
	return table
}

func TestDispatcher_Dispatch_AllLanesSucceed(t *testing.T) {
	lanes := []Lane{
		&fakeLane{id: LaneKeyword, items: []*Item{makeItem("k1", "K", "a.example.com")}},
		&fakeLane{id: LaneVector, items: []*Item{makeItem("v1", "V", "b.example.com")}},
	}
	d := NewDispatcher(lanes, uniformBudgets(lanes, time.Second))

	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)

	require.Len(t, results, 2)

	// Results arrive in configured lane order regardless of completion order.
	assert.Equal(t, LaneKeyword, results[0].Lane)
	assert.Equal(t, LaneVector, results[1].Lane)

	for _, r := range results {
		assert.Equal(t, StatusSuccess, r.Status)
		assert.Empty(t, r.Err)
		require.Len(t, r.Items, 1)
		// The dispatcher stamps lane provenance on every item.
		assert.Equal(t, r.Lane, r.Items[0].Lane)
	}
}

func TestDispatcher_Dispatch_NilItemsBecomeEmptySlice(t *testing.T) {
	lanes := []Lane{&fakeLane{id: LaneKeyword}}
	d := NewDispatcher(lanes, uniformBudgets(lanes, time.Second))

	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)

	require.Len(t, results, 1)
	assert.Equal(t, StatusSuccess, results[0].Status)
	require.NotNil(t, results[0].Items)
	assert.Empty(t, results[0].Items)
}

func TestDispatcher_Dispatch_LaneErrorIsIsolated(t *testing.T) {
	lanes := []Lane{
		&fakeLane{id: LaneKeyword, err: errors.New("index unavailable")},
		&fakeLane{id: LaneVector, items: []*Item{makeItem("v1", "V", "b.example.com")}},
	}
	d := NewDispatcher(lanes, uniformBudgets(lanes, time.Second))

	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)

	require.Len(t, results, 2)

	failed := results[0]
	assert.Equal(t, StatusError, failed.Status)
	// Lane failures are reported as coded, retryable lane errors.
	assert.Contains(t, failed.Err, fluxerrors.ErrCodeLaneFailed)
	assert.Contains(t, failed.Err, "index unavailable")
	assert.Empty(t, failed.Items)

	// The healthy lane is unaffected.
	assert.Equal(t, StatusSuccess, results[1].Status)
	assert.Len(t, results[1].Items, 1)
}

func TestDispatcher_Dispatch_SlowLaneTimesOut(t *testing.T) {
	lanes := []Lane{
		&fakeLane{id: LaneKeyword, delay: 500 * time.Millisecond, items: []*Item{makeItem("k1", "Late", "a.example.com")}},
		&fakeLane{id: LaneVector, items: []*Item{makeItem("v1", "Fast", "b.example.com")}},
	}
	d := NewDispatcher(lanes, uniformBudgets(lanes, 30*time.Millisecond))

	start := time.Now()
	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)
	elapsed := time.Since(start)

	require.Len(t, results, 2)

	timedOut := results[0]
	assert.Equal(t, StatusTimeout, timedOut.Status)
	assert.Contains(t, timedOut.Err, fluxerrors.ErrCodeLaneTimeout)
	assert.Contains(t, timedOut.Err, "budget exceeded")
	// Late answers are discarded, never merged.
	assert.Empty(t, timedOut.Items)

	assert.Equal(t, StatusSuccess, results[1].Status)

	// Dispatch returns at the budget boundary, not after the slow lane.
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestDispatcher_Dispatch_AbandonsLaneIgnoringContext(t *testing.T) {
	lanes := []Lane{
		&fakeLane{id: LaneKeyword, delay: 500 * time.Millisecond, ignoreCtx: true,
			items: []*Item{makeItem("k1", "Late", "a.example.com")}},
	}
	d := NewDispatcher(lanes, uniformBudgets(lanes, 30*time.Millisecond))

	start := time.Now()
	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.Equal(t, StatusTimeout, results[0].Status)
	assert.Empty(t, results[0].Items)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestDispatcher_Dispatch_LaneReportingDeadlineExceeded(t *testing.T) {
	// A lane surfacing ctx's own deadline error counts as a timeout, not a
	// generic failure.
	lanes := []Lane{&fakeLane{id: LaneKeyword, err: context.DeadlineExceeded}}
	d := NewDispatcher(lanes, uniformBudgets(lanes, time.Second))

	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)

	require.Len(t, results, 1)
	assert.Equal(t, StatusTimeout, results[0].Status)
}

func TestDispatcher_Dispatch_ParentCancellation(t *testing.T) {
	lanes := []Lane{&fakeLane{id: LaneKeyword, delay: time.Second}}
	d := NewDispatcher(lanes, uniformBudgets(lanes, 5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	results := d.Dispatch(ctx, "query", ComplexityTechnical, nil)

	require.Len(t, results, 1)
	assert.Equal(t, StatusError, results[0].Status)
	assert.NotEmpty(t, results[0].Err)
}

func TestDispatcher_Dispatch_AllLanesTimeout(t *testing.T) {
	lanes := []Lane{
		&fakeLane{id: LaneKeyword, delay: 300 * time.Millisecond},
		&fakeLane{id: LaneVector, delay: 300 * time.Millisecond},
	}
	d := NewDispatcher(lanes, uniformBudgets(lanes, 20*time.Millisecond))

	results := d.Dispatch(context.Background(), "query", ComplexityTechnical, nil)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusTimeout, r.Status)
		assert.Empty(t, r.Items)
	}
}

func TestDispatcher_Lanes(t *testing.T) {
	lanes := []Lane{
		&fakeLane{id: LaneNews},
		&fakeLane{id: LaneMarkets},
	}
	d := NewDispatcher(lanes, uniformBudgets(lanes, time.Second))

	assert.Equal(t, []LaneID{LaneNews, LaneMarkets}, d.Lanes())
}
