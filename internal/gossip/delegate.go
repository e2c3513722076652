package gossip

import (
	"sort"
	"sync"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"dotclock/internal/clock"
	"dotclock/internal/codec"
	"dotclock/internal/config"
	"dotclock/internal/metrics"
	"dotclock/internal/replica"
)

// DefaultRetransmitMult scales how many times a broadcast is retransmitted
// (times log(N+1)).
const DefaultRetransmitMult = 3

// Delegate implements memberlist.Delegate and memberlist.EventDelegate.
type Delegate struct {
	clock   *replica.Clock
	meta    []byte
	queue   *memberlist.TransmitLimitedQueue
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	members map[string]string // member name -> gRPC address
}

var (
	_ memberlist.Delegate      = (*Delegate)(nil)
	_ memberlist.EventDelegate = (*Delegate)(nil)
)

// NewDelegate creates a delegate advertising grpcAddr. numNodes sizes the
// retransmit budget and must be safe to call before the memberlist exists.
// Every change of c is queued for broadcast.
func NewDelegate(c *replica.Clock, grpcAddr string, numNodes func() int, logger *zap.Logger, m *metrics.Metrics) *Delegate {
	d := &Delegate{
		clock: c,
		meta:  []byte(grpcAddr),
		queue: &memberlist.TransmitLimitedQueue{
			NumNodes:       numNodes,
			RetransmitMult: DefaultRetransmitMult,
		},
		logger:  logger,
		metrics: m,
		members: make(map[string]string),
	}
	c.OnChange(func(clock.VersionVector) {
		d.enqueue()
	})
	return d
}

// NodeMeta implements memberlist.Delegate
func (d *Delegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		d.logger.Error("gRPC address exceeds node meta limit",
			zap.Int("size", len(d.meta)),
			zap.Int("limit", limit))
		return nil
	}
	return d.meta
}

// NotifyMsg implements memberlist.Delegate
func (d *Delegate) NotifyMsg(data []byte) {
	d.observe(data, "broadcast")
}

// GetBroadcasts implements memberlist.Delegate
func (d *Delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return d.queue.GetBroadcasts(overhead, limit)
}

// LocalState implements memberlist.Delegate
func (d *Delegate) LocalState(join bool) []byte {
	d.metrics.GossipMessagesTotal.WithLabelValues("push").Inc()
	return d.encodeClock()
}

// MergeRemoteState implements memberlist.Delegate
func (d *Delegate) MergeRemoteState(buf []byte, join bool) {
	d.observe(buf, "pull")
}

// NotifyJoin is called when a node joins
func (d *Delegate) NotifyJoin(node *memberlist.Node) {
	d.setMember(node)
	d.logger.Info("Node joined",
		zap.String("node_id", node.Name),
		zap.String("addr", node.Address()),
		zap.String("grpc_addr", string(node.Meta)))
}

// NotifyLeave is called when a node leaves
func (d *Delegate) NotifyLeave(node *memberlist.Node) {
	d.mu.Lock()
	delete(d.members, node.Name)
	d.mu.Unlock()

	d.logger.Info("Node left", zap.String("node_id", node.Name))
}

// NotifyUpdate is called when a node is updated
func (d *Delegate) NotifyUpdate(node *memberlist.Node) {
	d.setMember(node)
	d.logger.Debug("Node updated", zap.String("node_id", node.Name))
}

// Peers returns the live members other than this node, sorted by ID.
func (d *Delegate) Peers() []config.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	self := d.clock.ID()
	peers := make([]config.Peer, 0, len(d.members))
	for id, addr := range d.members {
		if id == self || addr == "" {
			continue
		}
		peers = append(peers, config.Peer{ID: id, Addr: addr})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

// QueuedBroadcasts returns the number of broadcasts waiting to be sent.
func (d *Delegate) QueuedBroadcasts() int {
	return d.queue.NumQueued()
}

func (d *Delegate) setMember(node *memberlist.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[node.Name] = string(node.Meta)
}

func (d *Delegate) encodeClock() []byte {
	return codec.Marshal(&codec.SyncRequest{From: d.clock.ID(), Clock: d.clock.Snapshot()})
}

// enqueue broadcasts the current clock. The snapshot is taken now rather than
// from the change notification, so a late notification never queues an
// older clock over a newer one.
func (d *Delegate) enqueue() {
	d.queue.QueueBroadcast(&clockBroadcast{msg: d.encodeClock()})
}

func (d *Delegate) observe(data []byte, kind string) {
	var msg codec.SyncRequest
	if err := codec.Unmarshal(data, &msg); err != nil {
		d.metrics.GossipMessagesTotal.WithLabelValues("invalid").Inc()
		d.logger.Warn("Failed to decode gossip message", zap.String("kind", kind), zap.Error(err))
		return
	}
	d.metrics.GossipMessagesTotal.WithLabelValues(kind).Inc()

	if msg.From == d.clock.ID() {
		return
	}
	_, rel := d.clock.Observe(msg.Clock)
	d.logger.Debug("Gossip clock received",
		zap.String("from", msg.From),
		zap.String("kind", kind),
		zap.Stringer("relation", rel))
}

// clockBroadcast carries one encoded clock. A newer clock from this node
// replaces any queued older one.
type clockBroadcast struct {
	msg []byte
}

func (b *clockBroadcast) Invalidates(other memberlist.Broadcast) bool {
	_, ok := other.(*clockBroadcast)
	return ok
}

func (b *clockBroadcast) Message() []byte {
	return b.msg
}

func (b *clockBroadcast) Finished() {}
