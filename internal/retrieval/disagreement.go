package retrieval

import "strings"

// ConflictTypePotential labels disagreements surfaced by the detector.
const ConflictTypePotential = "potential_disagreement"

// ConflictPredicate decides whether two items from different domains present
// conflicting claims. Implementations return the conflict confidence (0-1)
// alongside the verdict.
type ConflictPredicate interface {
	Conflict(a, b *Item) (bool, float64)
}

// noConflict is the shipped predicate: it reports no conflict for every pair.
// Real conflict detection (semantic contradiction, numeric mismatch) is an
// extension point filled by callers with their own predicate.
type noConflict struct{}

func (noConflict) Conflict(_, _ *Item) (bool, float64) { return false, 0 }

// NoConflictPredicate returns the default always-no-conflict predicate.
func NoConflictPredicate() ConflictPredicate { return noConflict{} }

// Detector scans cross-domain result pairs for conflicting claims and emits
// advisory disagreement markers. Detection never blocks or reorders fusion
// output.
type Detector struct {
	predicate ConflictPredicate
}

// NewDetector creates a detector with the given predicate. A nil predicate
// uses NoConflictPredicate.
func NewDetector(predicate ConflictPredicate) *Detector {
	if predicate == nil {
		predicate = noConflict{}
	}
	return &Detector{predicate: predicate}
}

// Detect iterates all unordered pairs of items from different domains and
// asks the predicate about each. Returns an empty slice, not nil, when
// nothing conflicts.
func (d *Detector) Detect(items []*Item) []*Disagreement {
	disagreements := []*Disagreement{}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			if strings.EqualFold(a.Domain, b.Domain) {
				continue
			}
			conflict, confidence := d.predicate.Conflict(a, b)
			if !conflict {
				continue
			}
			disagreements = append(disagreements, &Disagreement{
				Source1:      a.Domain,
				Source2:      b.Domain,
				ConflictType: ConflictTypePotential,
				Confidence:   confidence,
			})
		}
	}
	return disagreements
}
