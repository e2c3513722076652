package antientropy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"dotclock/internal/clock"
	"dotclock/internal/codec"
	"dotclock/internal/config"
	"dotclock/internal/metrics"
	"dotclock/internal/quorum"
	"dotclock/internal/repair"
	"dotclock/internal/replica"
	"dotclock/internal/storage"
	"dotclock/internal/transport"
)

// PeerSource supplies the peers to sync with.
type PeerSource interface {
	Peers() []config.Peer
}

// StaticPeers is a fixed peer list.
type StaticPeers []config.Peer

// Peers returns the list itself.
func (s StaticPeers) Peers() []config.Peer {
	return s
}

// ClientProvider returns a client for a peer address.
// *transport.ClientManager implements it.
type ClientProvider interface {
	GetClient(addr string) (*transport.Client, error)
}

// Options tunes a Syncer. Zero values fall back to the defaults.
type Options struct {
	Interval      time.Duration
	PeerTimeout   time.Duration
	RepairTimeout time.Duration
	// Required is the number of peers that must answer for a round to
	// count as successful. Zero means a majority.
	Required int
}

// Syncer periodically converges the local clock and store with peers.
type Syncer struct {
	clock    *replica.Clock
	store    storage.Store
	peers    PeerSource
	clients  ClientProvider
	repairer *repair.Repairer
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewSyncer creates a new syncer.
func NewSyncer(c *replica.Clock, store storage.Store, peers PeerSource, clients ClientProvider, opts Options, logger *zap.Logger, m *metrics.Metrics) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.PeerTimeout <= 0 {
		opts.PeerTimeout = quorum.DefaultPerPeerTimeout
	}

	s := &Syncer{
		clock:   c,
		store:   store,
		peers:   peers,
		clients: clients,
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
	s.repairer = repair.NewRepairer(s.pushClock, opts.RepairTimeout, logger, m)
	return s
}

// Run executes rounds every interval until ctx is cancelled, then waits
// for outstanding repairs.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	defer s.repairer.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Round(ctx); err != nil {
				s.logger.Debug("Anti-entropy round incomplete", zap.Error(err))
			}
		}
	}
}

// Round runs one exchange with every current peer. Partial results are
// still merged; the returned error reports peers that could not be reached.
func (s *Syncer) Round(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.AntiEntropyDuration.Observe(time.Since(start).Seconds())
	}()

	self := s.clock.ID()
	addrs := make(map[string]string)
	var ids []string
	for _, p := range s.peers.Peers() {
		if p.ID == self || p.ID == "" {
			continue
		}
		if _, dup := addrs[p.ID]; !dup {
			ids = append(ids, p.ID)
		}
		addrs[p.ID] = p.Addr
	}
	if len(ids) == 0 {
		s.metrics.AntiEntropyRoundsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	sort.Strings(ids)

	required := s.opts.Required
	if required > len(ids) {
		required = len(ids)
	}

	request := &codec.SyncRequest{From: self, Clock: s.clock.Snapshot()}
	result := quorum.Pull(ctx, ids, required, s.opts.PeerTimeout, func(ctx context.Context, id string) (*codec.SyncReply, error) {
		client, err := s.clients.GetClient(addrs[id])
		if err != nil {
			return nil, err
		}
		return client.Sync(ctx, request)
	})

	if result.Responses == 0 {
		s.metrics.AntiEntropyRoundsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("anti-entropy round: %w", result.Err)
	}

	views := []repair.View{{ReplicaID: self, Clock: request.Clock}}
	for _, id := range ids {
		if reply, ok := result.Values[id]; ok {
			views = append(views, repair.View{ReplicaID: id, Clock: reply.Clock})
		}
	}

	reconciled := repair.Reconcile(views)
	merged, rel := s.clock.Observe(reconciled.Merged)

	behind := reconciled.Behind(views)
	delete(behind, self)
	s.repairer.Repair(merged, behind, addrs)

	pulled := 0
	for _, id := range ids {
		if reply, ok := result.Values[id]; ok {
			pulled += s.pullKeys(ctx, id, addrs[id], reply.Keys)
		}
	}

	s.logger.Debug("Anti-entropy round",
		zap.Int("peers", len(ids)),
		zap.Int("responses", result.Responses),
		zap.Int("behind", len(behind)),
		zap.Int("keys_pulled", pulled),
		zap.Stringer("relation", rel),
		zap.Stringer("clock", merged))

	if !result.Success {
		s.metrics.AntiEntropyRoundsTotal.WithLabelValues("partial").Inc()
		return fmt.Errorf("anti-entropy round: %w", result.Err)
	}
	s.metrics.AntiEntropyRoundsTotal.WithLabelValues("success").Inc()
	return nil
}

// pullKeys merges the peer's state of each key into the local store and
// returns how many keys were merged.
func (s *Syncer) pullKeys(ctx context.Context, peerID, addr string, keys []string) int {
	if len(keys) == 0 {
		return 0
	}

	client, err := s.clients.GetClient(addr)
	if err != nil {
		s.logger.Warn("Key pull skipped", zap.String("peer", peerID), zap.Error(err))
		return 0
	}

	merged := 0
	for _, key := range keys {
		reply, err := client.Get(ctx, &codec.GetRequest{Key: key})
		if err != nil {
			s.logger.Warn("Key pull failed",
				zap.String("peer", peerID),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if !reply.Found {
			continue
		}
		if err := s.store.Merge(key, toVersioned(reply)); err != nil {
			s.logger.Warn("Key merge rejected",
				zap.String("peer", peerID),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		merged++
		// Writes after the Sync reply carry dots the clock has not seen yet
		s.clock.Observe(reply.Context)
	}
	return merged
}

// pushClock delivers a clock through the Sync RPC. The peer's answer is
// ignored; the next round picks it up.
func (s *Syncer) pushClock(ctx context.Context, addr string, vv clock.VersionVector) error {
	client, err := s.clients.GetClient(addr)
	if err != nil {
		return err
	}
	_, err = client.Sync(ctx, &codec.SyncRequest{From: s.clock.ID(), Clock: vv})
	return err
}

func toVersioned(reply *codec.GetReply) *storage.Versioned {
	siblings := make([]storage.Sibling, len(reply.Siblings))
	for i, sib := range reply.Siblings {
		siblings[i] = storage.Sibling{Dot: sib.Dot, Value: sib.Value, Deleted: sib.Deleted}
	}
	return &storage.Versioned{Siblings: siblings, Context: reply.Context}
}
