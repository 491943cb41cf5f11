package retrieval

import (
	"fmt"
	"time"
)

// BudgetTable maps (lane, complexity tier) to the maximum time that lane may
// run before the dispatcher abandons it. Built once at startup and read-only
// afterwards; no run mutates it.
type BudgetTable map[LaneID]map[Complexity]time.Duration

// DefaultBudgetTable returns the budgets used by the built-in lanes.
// Research and multimedia tiers share a row.
func DefaultBudgetTable() BudgetTable {
	row := func(simple, technical, deep int) map[Complexity]time.Duration {
		return map[Complexity]time.Duration{
			ComplexitySimple:     time.Duration(simple) * time.Millisecond,
			ComplexityTechnical:  time.Duration(technical) * time.Millisecond,
			ComplexityResearch:   time.Duration(deep) * time.Millisecond,
			ComplexityMultimedia: time.Duration(deep) * time.Millisecond,
		}
	}
	return BudgetTable{
		LaneKeyword:        row(500, 750, 1000),
		LaneVector:         row(1000, 1500, 2000),
		LaneKnowledgeGraph: row(1000, 1500, 2000),
		LaneNews:           row(300, 500, 800),
		LaneMarkets:        row(300, 500, 800),
	}
}

// Lookup returns the budget for a lane and tier. Unrecognized tiers use the
// technical row. A lane absent from the table is a configuration bug that
// Validate catches at startup; Lookup falls back to the technical default so
// a request never observes a zero deadline.
func (t BudgetTable) Lookup(lane LaneID, tier Complexity) time.Duration {
	row, ok := t[lane]
	if !ok {
		return DefaultBudgetTable()[LaneKeyword][ComplexityTechnical]
	}
	if d, ok := row[ParseComplexity(string(tier))]; ok && d > 0 {
		return d
	}
	return row[ComplexityTechnical]
}

// Validate reports the first missing or non-positive budget entry for the
// given lanes across all tiers. Called once at startup; a failure here is
// fatal, never surfaced at request time.
func (t BudgetTable) Validate(lanes []LaneID) error {
	tiers := []Complexity{ComplexitySimple, ComplexityTechnical, ComplexityResearch, ComplexityMultimedia}
	for _, lane := range lanes {
		row, ok := t[lane]
		if !ok {
			return fmt.Errorf("budget table has no row for lane %q", lane)
		}
		for _, tier := range tiers {
			d, ok := row[tier]
			if !ok {
				return fmt.Errorf("budget table lane %q missing tier %q", lane, tier)
			}
			if d <= 0 {
				return fmt.Errorf("budget table lane %q tier %q must be positive, got %s", lane, tier, d)
			}
		}
	}
	return nil
}
