package replica

import (
	"sync"

	"go.uber.org/zap"

	"dotclock/internal/clock"
	"dotclock/internal/metrics"
)

// Clock is the node's own version vector, shared between request handlers,
// anti-entropy and gossip. It is safe for concurrent use.
type Clock struct {
	id      string
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	current   clock.VersionVector
	listeners []func(clock.VersionVector)
}

// NewClock creates an empty clock for replica id.
func NewClock(id string, logger *zap.Logger, m *metrics.Metrics) *Clock {
	return &Clock{
		id:      id,
		logger:  logger.With(zap.String("replica", id)),
		metrics: m,
		current: clock.New(),
	}
}

// ID returns the replica ID events are stamped with.
func (c *Clock) ID() string {
	return c.id
}

// Snapshot returns the current vector. The returned value is never modified.
func (c *Clock) Snapshot() clock.VersionVector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Tick records one local event and returns its dot.
func (c *Clock) Tick() clock.Dot {
	c.mu.Lock()
	next := c.current.Increment(c.id)
	c.current = next
	c.mu.Unlock()

	c.metrics.EventsTotal.Inc()
	c.metrics.KnownReplicas.Set(float64(next.Len()))
	c.notify(next)
	return next.Dot(c.id)
}

// Observe merges remote into the clock. It returns the merged vector and how
// remote related to the local vector before the merge. Concurrent vectors are
// reported, never resolved.
func (c *Clock) Observe(remote clock.VersionVector) (clock.VersionVector, clock.CompareResult) {
	c.mu.Lock()
	rel := remote.Compare(c.current)
	if rel == clock.After || rel == clock.Concurrent {
		c.current = c.current.Merge(remote)
	}
	merged := c.current
	c.mu.Unlock()

	c.metrics.MergesTotal.Inc()
	switch rel {
	case clock.Concurrent:
		c.metrics.ConcurrentTotal.Inc()
		c.logger.Info("Concurrent clock observed",
			zap.Stringer("remote", remote),
			zap.Stringer("merged", merged))
	case clock.After:
		c.logger.Debug("Clock advanced", zap.Stringer("merged", merged))
	}

	if rel == clock.After || rel == clock.Concurrent {
		c.metrics.KnownReplicas.Set(float64(merged.Len()))
		c.notify(merged)
	}
	return merged, rel
}

// Seen reports whether the clock has observed d.
func (c *Clock) Seen(d clock.Dot) bool {
	return c.Snapshot().DescendsDot(d)
}

// OnChange registers fn to be called after every change with the new vector.
// Callbacks run on the goroutine that made the change, outside the lock.
func (c *Clock) OnChange(fn func(clock.VersionVector)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Clock) notify(vv clock.VersionVector) {
	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(vv)
	}
}
