package retrieval

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fusion parameter defaults. k=60 is empirically validated across domains
// (used by Azure AI Search, OpenSearch, etc.); the boosts are deliberately
// small so rank evidence stays dominant.
const (
	DefaultRRFConstant    = 60
	DefaultDiversityBoost = 0.1
	DefaultRecencyBoost   = 0.05

	// recencyHorizonDays is the window over which the recency boost decays
	// to zero. Older items are floored at zero, never penalized.
	recencyHorizonDays = 365.0
)

// Params configures a Fuser. Overridable only via configuration, never
// per-call.
type Params struct {
	// K is the RRF smoothing constant.
	K int

	// DiversityBoost is split evenly across each domain's surviving items,
	// suppressing domination by any single source.
	DiversityBoost float64

	// RecencyBoost is the maximum boost for an item published "now",
	// decaying linearly to zero at the horizon.
	RecencyBoost float64

	// LaneWeights optionally weight each lane's rank contribution.
	// Lanes absent from the map contribute with weight 1.0.
	LaneWeights map[LaneID]float64
}

// DefaultParams returns the standard fusion parameters.
func DefaultParams() Params {
	return Params{
		K:              DefaultRRFConstant,
		DiversityBoost: DefaultDiversityBoost,
		RecencyBoost:   DefaultRecencyBoost,
	}
}

// Fuser combines independent per-lane ranked lists into one deduplicated,
// boosted ranking. A Fuser is immutable after construction and safe for
// concurrent runs; all per-run state lives on the stack of Fuse.
type Fuser struct {
	params   Params
	detector *Detector
}

// NewFuser creates a Fuser with the given parameters, applying defaults for
// zero values. The disagreement detector uses the always-no-conflict
// predicate unless overridden with NewFuserWithDetector.
func NewFuser(params Params) *Fuser {
	if params.K <= 0 {
		params.K = DefaultRRFConstant
	}
	if params.DiversityBoost <= 0 {
		params.DiversityBoost = DefaultDiversityBoost
	}
	if params.RecencyBoost <= 0 {
		params.RecencyBoost = DefaultRecencyBoost
	}
	return &Fuser{params: params, detector: NewDetector(nil)}
}

// NewFuserWithDetector creates a Fuser with a custom disagreement detector.
func NewFuserWithDetector(params Params, detector *Detector) *Fuser {
	f := NewFuser(params)
	if detector != nil {
		f.detector = detector
	}
	return f
}

// Params returns the parameters this Fuser applies.
func (f *Fuser) Params() Params {
	return f.params
}

// Fuse merges the lane results into a single ranked, deduplicated list.
// Only status=success lanes contribute items. now is the reference time for
// recency boosting, passed explicitly to keep the algorithm deterministic.
// Zero successful lanes yields a valid empty FusedResult, never an error.
func (f *Fuser) Fuse(laneResults []*Result, now time.Time) *FusedResult {
	start := time.Now()

	var candidates []*Item
	successful := 0
	for _, lr := range laneResults {
		if lr == nil || lr.Status != StatusSuccess {
			continue
		}
		successful++
		weight := f.laneWeight(lr.Lane)
		for i, item := range lr.Items {
			// 0-based position i contributes 1/(k+i+1); items absent
			// from a lane contribute nothing for that lane.
			item.FusionScore = weight / float64(f.params.K+i+1)
			candidates = append(candidates, item)
		}
	}

	f.applyDiversityBoost(candidates)
	f.applyRecencyBoost(candidates, now)

	// Stable: ties keep lane insertion order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FusionScore > candidates[j].FusionScore
	})

	ranked := dedupe(candidates)

	fused := &FusedResult{
		RunID:   uuid.NewString(),
		Results: ranked,
		Metadata: FusionMetadata{
			TotalLanes:      len(laneResults),
			SuccessfulLanes: successful,
			RRFConstant:     f.params.K,
			DiversityBoost:  f.params.DiversityBoost,
			RecencyBoost:    f.params.RecencyBoost,
		},
		Citations:     BuildCitations(ranked),
		Disagreements: f.detector.Detect(ranked),
		TotalResults:  len(ranked),
		UniqueDomains: countDomains(ranked),
	}
	fused.FusionTimeMS = time.Since(start).Milliseconds()
	return fused
}

func (f *Fuser) laneWeight(lane LaneID) float64 {
	if w, ok := f.params.LaneWeights[lane]; ok && w > 0 {
		return w
	}
	return 1.0
}

// applyDiversityBoost splits DiversityBoost evenly across each domain's
// items: a domain with n items adds boost/n to each, so every domain receives
// the same total regardless of item count.
func (f *Fuser) applyDiversityBoost(items []*Item) {
	if len(items) == 0 {
		return
	}
	counts := make(map[string]int, len(items))
	for _, it := range items {
		counts[strings.ToLower(it.Domain)]++
	}
	for _, it := range items {
		n := counts[strings.ToLower(it.Domain)]
		it.FusionScore += f.params.DiversityBoost / float64(n)
	}
}

// applyRecencyBoost adds max(0, boost*(1-daysOld/horizon)) for items with a
// parseable publication timestamp. Missing or malformed timestamps are
// silently skipped, never an error.
func (f *Fuser) applyRecencyBoost(items []*Item, now time.Time) {
	for _, it := range items {
		published, ok := ParsePublishedAt(it.PublishedAt)
		if !ok {
			continue
		}
		daysOld := now.Sub(published).Hours() / 24
		boost := f.params.RecencyBoost * (1 - daysOld/recencyHorizonDays)
		if boost > 0 {
			it.FusionScore += boost
		}
	}
}

// dedupe walks the sorted list once and drops any item whose
// lowercase(domain):lowercase(title) key was already seen, keeping the first
// (highest-ranked) occurrence. Exact-match only; near-duplicate titles with
// minor differences pass through.
func dedupe(items []*Item) []*Item {
	out := make([]*Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		key := strings.ToLower(it.Domain) + ":" + strings.ToLower(it.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

func countDomains(items []*Item) int {
	domains := make(map[string]struct{}, len(items))
	for _, it := range items {
		domains[strings.ToLower(it.Domain)] = struct{}{}
	}
	return len(domains)
}
