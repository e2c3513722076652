package repair

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dotclock/internal/clock"
	"dotclock/internal/metrics"
)

// PushFunc delivers a clock to the replica listening on addr.
type PushFunc func(ctx context.Context, addr string, vv clock.VersionVector) error

// Repairer performs asynchronous repair to converge stale replicas.
type Repairer struct {
	push    PushFunc
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// NewRepairer creates a new repairer.
func NewRepairer(push PushFunc, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Repairer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Repairer{
		push:    push,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Repair asynchronously pushes merged to every stale replica.
// This is fire-and-forget: it logs errors but does not block or retry.
// It runs under its own timeout, detached from any request context.
func (r *Repairer) Repair(merged clock.VersionVector, stale map[string]clock.VersionVector, replicaIDToAddr map[string]string) {
	if len(stale) == 0 {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				r.logger.Error("Repair panic", zap.Any("panic", err))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		r.logger.Debug("Repair triggered",
			zap.Int("stale", len(stale)),
			zap.Stringer("merged", merged))

		repaired, failed := 0, 0
		for replicaID, staleClock := range stale {
			addr, exists := replicaIDToAddr[replicaID]
			if !exists {
				r.logger.Debug("Repair skipping replica without address", zap.String("replica", replicaID))
				r.metrics.RepairsTotal.WithLabelValues("skipped").Inc()
				continue
			}

			if err := r.repairReplica(ctx, addr, merged, staleClock); err != nil {
				r.logger.Warn("Repair failed",
					zap.String("replica", replicaID),
					zap.String("addr", addr),
					zap.Error(err))
				r.metrics.RepairsTotal.WithLabelValues("failure").Inc()
				failed++
				continue
			}
			r.metrics.RepairsTotal.WithLabelValues("success").Inc()
			repaired++
		}

		r.logger.Debug("Repair completed", zap.Int("repaired", repaired), zap.Int("failed", failed))
	}()
}

// Wait blocks until every repair started so far has finished.
func (r *Repairer) Wait() {
	r.wg.Wait()
}

func (r *Repairer) repairReplica(ctx context.Context, addr string, merged, staleClock clock.VersionVector) error {
	if staleClock.Descends(merged) {
		return nil
	}
	if err := r.push(ctx, addr, merged); err != nil {
		return fmt.Errorf("push to %s: %w", addr, err)
	}
	return nil
}
