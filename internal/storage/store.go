package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"dotclock/internal/clock"
	"dotclock/internal/metrics"
)

// ErrInvalidState is returned by Merge when the remote state is inconsistent.
var ErrInvalidState = errors.New("storage: invalid remote state")

// Sibling is one value written under a key, identified by its dot.
type Sibling struct {
	Dot     clock.Dot
	Value   []byte
	Deleted bool // True if this is a tombstone (deleted)
}

// Versioned is the state of a key: its concurrent siblings and the context
// summarizing every write the key has seen.
type Versioned struct {
	Siblings []Sibling
	Context  clock.VersionVector
}

// HasConflict returns true if concurrent writes left more than one sibling.
func (v *Versioned) HasConflict() bool {
	return len(v.Siblings) > 1
}

// IsTombstone checks if every remaining sibling is a deletion.
func (v *Versioned) IsTombstone() bool {
	if len(v.Siblings) == 0 {
		return false
	}
	for _, s := range v.Siblings {
		if !s.Deleted {
			return false
		}
	}
	return true
}

// Values returns the live (non-tombstone) sibling values.
func (v *Versioned) Values() [][]byte {
	values := make([][]byte, 0, len(v.Siblings))
	for _, s := range v.Siblings {
		if !s.Deleted {
			values = append(values, s.Value)
		}
	}
	return values
}

func (v *Versioned) copy() *Versioned {
	siblings := make([]Sibling, len(v.Siblings))
	for i, s := range v.Siblings {
		siblings[i] = Sibling{
			Dot:     s.Dot,
			Value:   append([]byte(nil), s.Value...),
			Deleted: s.Deleted,
		}
	}
	return &Versioned{Siblings: siblings, Context: v.Context}
}

// EventSource issues the dots new writes are stamped with. Every dot must be
// a fresh event of the node clock. *replica.Clock implements it.
type EventSource interface {
	Tick() clock.Dot
}

// Store defines the interface for key-value storage.
type Store interface {
	// Get retrieves the state of a key. Returns nil if not found.
	Get(key string) *Versioned
	// Put writes a value under the context the client last read. The write is
	// one new node event and its dot is returned with the new key context.
	// Siblings the context has seen are replaced; the rest stay as concurrent
	// siblings. If deleted is true, stores a tombstone.
	Put(key string, value []byte, context clock.VersionVector, deleted bool) (clock.Dot, clock.VersionVector)
	// Delete writes a tombstone. Equivalent to Put with deleted set.
	Delete(key string, context clock.VersionVector) (clock.Dot, clock.VersionVector)
	// Merge folds the state of the same key from another replica into this one
	// without creating a new event.
	Merge(key string, remote *Versioned) error
	// Keys returns every stored key in sorted order.
	Keys() []string
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe.
type InMemoryStore struct {
	mu          sync.RWMutex
	data        map[string]*Versioned
	conflicting int // keys with more than one sibling
	events      EventSource
	metrics     *metrics.Metrics
}

// NewInMemoryStore creates a new in-memory store whose writes are events of
// the given source.
func NewInMemoryStore(events EventSource, m *metrics.Metrics) *InMemoryStore {
	return &InMemoryStore{
		data:    make(map[string]*Versioned),
		events:  events,
		metrics: m,
	}
}

// Get retrieves the state of a key.
func (s *InMemoryStore) Get(key string) *Versioned {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[key]
	if !exists {
		return nil
	}

	// Return a copy to avoid external modifications
	return v.copy()
}

// Put stores a value.
// The write ticks the node clock; the new sibling is stamped with that dot and
// the key context becomes stored ⊔ context ⊔ {dot}. The tick happens under the
// store lock so writes are applied in dot order.
func (s *InMemoryStore) Put(key string, value []byte, context clock.VersionVector, deleted bool) (clock.Dot, clock.VersionVector) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &Versioned{Context: clock.New()}
	if existing, exists := s.data[key]; exists {
		stored = existing
	}

	dot := s.events.Tick()
	newContext := stored.Context.Merge(context).Merge(dot.Vector())

	siblings := make([]Sibling, 0, len(stored.Siblings)+1)
	for _, sibling := range stored.Siblings {
		if context.DescendsDot(sibling.Dot) {
			// The client read this sibling before writing: overwritten
			s.metrics.SiblingsDroppedTotal.Inc()
			continue
		}
		siblings = append(siblings, sibling)
	}

	var valueCopy []byte
	if !deleted {
		valueCopy = append([]byte(nil), value...)
	}
	siblings = append(siblings, Sibling{Dot: dot, Value: valueCopy, Deleted: deleted})
	sortSiblings(siblings)

	s.replace(key, &Versioned{Siblings: siblings, Context: newContext})
	s.metrics.WritesTotal.Inc()

	return dot, newContext
}

// Delete stores a tombstone.
func (s *InMemoryStore) Delete(key string, context clock.VersionVector) (clock.Dot, clock.VersionVector) {
	return s.Put(key, nil, context, true)
}

// Merge folds remote into the local state of key.
// A sibling survives if the other side holds it too, or if the other side's
// context has not seen its dot (it is concurrent, not overwritten).
func (s *InMemoryStore) Merge(key string, remote *Versioned) error {
	if remote == nil {
		return fmt.Errorf("%w: merge requires non-nil state", ErrInvalidState)
	}
	for _, sibling := range remote.Siblings {
		if !remote.Context.DescendsDot(sibling.Dot) {
			return fmt.Errorf("%w: sibling %s not covered by context %s", ErrInvalidState, sibling.Dot, remote.Context)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local := &Versioned{Context: clock.New()}
	if existing, exists := s.data[key]; exists {
		local = existing
	}

	localDots := dotSet(local.Siblings)
	remoteDots := dotSet(remote.Siblings)

	siblings := make([]Sibling, 0, len(local.Siblings)+len(remote.Siblings))
	for _, sibling := range local.Siblings {
		if remoteDots.Contains(sibling.Dot) || !remote.Context.DescendsDot(sibling.Dot) {
			siblings = append(siblings, sibling)
		} else {
			s.metrics.SiblingsDroppedTotal.Inc()
		}
	}
	for _, sibling := range remote.Siblings {
		if localDots.Contains(sibling.Dot) || local.Context.DescendsDot(sibling.Dot) {
			continue
		}
		siblings = append(siblings, Sibling{
			Dot:     sibling.Dot,
			Value:   append([]byte(nil), sibling.Value...),
			Deleted: sibling.Deleted,
		})
	}
	sortSiblings(siblings)

	context := local.Context.Merge(remote.Context)
	if len(siblings) == 0 && context.Len() == 0 {
		return nil
	}

	s.replace(key, &Versioned{Siblings: siblings, Context: context})
	return nil
}

// Keys returns every stored key in sorted order.
func (s *InMemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// replace stores next under key and adjusts the conflicting key count.
// The write lock must be held.
func (s *InMemoryStore) replace(key string, next *Versioned) {
	if prev, exists := s.data[key]; exists && prev.HasConflict() {
		s.conflicting--
	}
	if next.HasConflict() {
		s.conflicting++
	}
	s.data[key] = next
	s.metrics.ConflictingKeys.Set(float64(s.conflicting))
}

func dotSet(siblings []Sibling) mapset.Set[clock.Dot] {
	dots := mapset.NewThreadUnsafeSet[clock.Dot]()
	for _, s := range siblings {
		dots.Add(s.Dot)
	}
	return dots
}

func sortSiblings(siblings []Sibling) {
	sort.Slice(siblings, func(i, j int) bool {
		if siblings[i].Dot.ReplicaID != siblings[j].Dot.ReplicaID {
			return siblings[i].Dot.ReplicaID < siblings[j].Dot.ReplicaID
		}
		return siblings[i].Dot.Counter < siblings[j].Dot.Counter
	})
}
