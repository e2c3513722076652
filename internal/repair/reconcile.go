package repair

import (
	"dotclock/internal/clock"
)

// View is the clock a single replica reported.
type View struct {
	ReplicaID string
	Clock     clock.VersionVector
}

// ReconcileResult represents the result of reconciling multiple views.
type ReconcileResult struct {
	// Winners is the maximal set of non-dominated views.
	// If len(Winners) == 1, one replica has seen everything the others have.
	// If len(Winners) > 1, the winning clocks are concurrent.
	// Views with equal clocks are collapsed into the first one seen.
	Winners []View

	// Stale maps replica identifier to the clock it reported.
	// A view is stale if it's strictly dominated by at least one other view.
	Stale map[string]clock.VersionVector

	// Merged is the least upper bound of every view.
	Merged clock.VersionVector
}

// Reconcile computes the maximal set of clocks from the given views.
func Reconcile(views []View) ReconcileResult {
	result := ReconcileResult{
		Winners: []View{},
		Stale:   make(map[string]clock.VersionVector),
		Merged:  clock.New(),
	}

	for i, v1 := range views {
		result.Merged = result.Merged.Merge(v1.Clock)

		// Check if v1 is dominated by any other view
		isDominated := false
		for j, v2 := range views {
			if i == j {
				continue
			}
			if v1.Clock.Compare(v2.Clock) == clock.Before {
				isDominated = true
				break
			}
		}

		if isDominated {
			result.Stale[v1.ReplicaID] = v1.Clock
			continue
		}

		isDuplicate := false
		for _, winner := range result.Winners {
			if v1.Clock.Equal(winner.Clock) {
				isDuplicate = true
				break
			}
		}
		if !isDuplicate {
			result.Winners = append(result.Winners, v1)
		}
	}

	return result
}

// HasConflict returns true if there are multiple winners (concurrent clocks).
func (r *ReconcileResult) HasConflict() bool {
	return len(r.Winners) > 1
}

// IsResolved returns true if there's exactly one winner.
func (r *ReconcileResult) IsResolved() bool {
	return len(r.Winners) == 1
}

// IsEmpty returns true if no views were reconciled.
func (r *ReconcileResult) IsEmpty() bool {
	return len(r.Winners) == 0
}

// Behind returns the replicas whose clock the merged clock strictly
// descends. Unlike Stale this includes the winners of a conflict, since each
// of them is missing what the others saw.
func (r *ReconcileResult) Behind(views []View) map[string]clock.VersionVector {
	behind := make(map[string]clock.VersionVector)
	for _, v := range views {
		if r.Merged.Compare(v.Clock) == clock.After {
			behind[v.ReplicaID] = v.Clock
		}
	}
	return behind
}
