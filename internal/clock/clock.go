package clock

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrNegativeCounter is returned when external data carries a counter below zero.
var ErrNegativeCounter = errors.New("clock: negative counter")

// VersionVector maps replica IDs to the number of events observed from each.
// A missing replica reads as zero. Values are immutable: operations that
// change the vector return a new one and never alias the receiver's map.
// The zero value is an empty vector.
type VersionVector struct {
	counters map[string]int64
}

// New creates a new empty version vector.
func New() VersionVector {
	return VersionVector{}
}

// FromCounters builds a vector from a plain map. Zero entries are dropped.
func FromCounters(counters map[string]int64) (VersionVector, error) {
	vv := VersionVector{counters: make(map[string]int64, len(counters))}
	for replicaID, counter := range counters {
		if counter < 0 {
			return VersionVector{}, fmt.Errorf("%w: %s=%d", ErrNegativeCounter, replicaID, counter)
		}
		if counter > 0 {
			vv.counters[replicaID] = counter
		}
	}
	return vv, nil
}

// Increment returns the vector after one more event at replicaID.
// If the replica is unknown its counter becomes 1.
func (vv VersionVector) Increment(replicaID string) VersionVector {
	next := vv.clone(len(vv.counters) + 1)
	next.counters[replicaID]++
	return next
}

// Get returns the counter value for the given replica ID, or 0 if not present.
func (vv VersionVector) Get(replicaID string) int64 {
	return vv.counters[replicaID]
}

// Len returns the number of replicas with a non-zero counter.
func (vv VersionVector) Len() int {
	return len(vv.counters)
}

// Replicas returns the known replica IDs in sorted order.
func (vv VersionVector) Replicas() []string {
	ids := make([]string, 0, len(vv.counters))
	for id := range vv.counters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Counters returns a copy of the underlying mapping.
func (vv VersionVector) Counters() map[string]int64 {
	return vv.clone(0).counters
}

// Descends reports whether vv has observed everything other has, i.e. for
// every replica in either vector vv's counter is >= other's.
// Descends is reflexive.
func (vv VersionVector) Descends(other VersionVector) bool {
	descends := true
	vv.union(other).Each(func(replicaID string) bool {
		if vv.counters[replicaID] < other.counters[replicaID] {
			descends = false
		}
		return !descends
	})
	return descends
}

// Concurrent reports whether neither vector descends the other.
func (vv VersionVector) Concurrent(other VersionVector) bool {
	return !vv.Descends(other) && !other.Descends(vv)
}

// Merge returns the least upper bound of both vectors: the per-replica max.
func (vv VersionVector) Merge(other VersionVector) VersionVector {
	keys := vv.union(other)
	merged := VersionVector{counters: make(map[string]int64, keys.Cardinality())}
	keys.Each(func(replicaID string) bool {
		merged.counters[replicaID] = max(vv.counters[replicaID], other.counters[replicaID])
		return false
	})
	return merged
}

// MergeAll joins any number of vectors. With no arguments it returns an
// empty vector.
func MergeAll(vectors ...VersionVector) VersionVector {
	merged := New()
	for _, v := range vectors {
		merged = merged.Merge(v)
	}
	return merged
}

// Dot extracts the dot for replicaID at the vector's current counter.
func (vv VersionVector) Dot(replicaID string) Dot {
	return Dot{ReplicaID: replicaID, Counter: vv.counters[replicaID]}
}

// DescendsDot reports whether vv has already observed d (or a later event
// from the same replica).
func (vv VersionVector) DescendsDot(d Dot) bool {
	return vv.counters[d.ReplicaID] >= d.Counter
}

// CompareResult represents the result of comparing two version vectors.
type CompareResult int

const (
	// Equal indicates both vectors observed exactly the same events.
	Equal CompareResult = iota
	// Before indicates this vector is strictly descended by the other.
	Before
	// After indicates this vector strictly descends the other.
	After
	// Concurrent indicates the vectors are incomparable.
	Concurrent
)

// String returns the name of the result.
func (r CompareResult) String() string {
	switch r {
	case Equal:
		return "Equal"
	case Before:
		return "Before"
	case After:
		return "After"
	case Concurrent:
		return "Concurrent"
	default:
		return fmt.Sprintf("CompareResult(%d)", int(r))
	}
}

// Compare classifies the relationship between vv and other.
// Returns:
//   - Equal: both descend each other
//   - Before: other descends vv but not the reverse
//   - After: vv descends other but not the reverse
//   - Concurrent: neither descends the other
func (vv VersionVector) Compare(other VersionVector) CompareResult {
	ahead := vv.Descends(other)
	behind := other.Descends(vv)
	switch {
	case ahead && behind:
		return Equal
	case behind:
		return Before
	case ahead:
		return After
	default:
		return Concurrent
	}
}

// Equal checks if two vectors carry the same causal content.
func (vv VersionVector) Equal(other VersionVector) bool {
	return vv.Descends(other) && other.Descends(vv)
}

// String returns a string representation of the vector.
func (vv VersionVector) String() string {
	if len(vv.counters) == 0 {
		return "{}"
	}

	var parts []string
	for _, k := range vv.Replicas() {
		parts = append(parts, fmt.Sprintf("%s:%d", k, vv.counters[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (vv VersionVector) clone(extra int) VersionVector {
	c := VersionVector{counters: make(map[string]int64, len(vv.counters)+extra)}
	for k, v := range vv.counters {
		c.counters[k] = v
	}
	return c
}

// union returns every replica ID present in either vector.
func (vv VersionVector) union(other VersionVector) mapset.Set[string] {
	keys := mapset.NewThreadUnsafeSetFromMapKeys(vv.counters)
	for replicaID := range other.counters {
		keys.Add(replicaID)
	}
	return keys
}
