package gossip

import (
	"net"
	"testing"

	"github.com/hashicorp/memberlist"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dotclock/internal/codec"
	"dotclock/internal/config"
	"dotclock/internal/metrics"
	"dotclock/internal/replica"
)

func newTestDelegate(t *testing.T, id, grpcAddr string) (*Delegate, *replica.Clock, *metrics.Metrics) {
	t.Helper()
	logger := zaptest.NewLogger(t).Named(id)
	m := metrics.New(id, nil)
	c := replica.NewClock(id, logger, m)
	d := NewDelegate(c, grpcAddr, func() int { return 3 }, logger, m)
	return d, c, m
}

func TestDelegate_NodeMeta(t *testing.T) {
	d, _, _ := newTestDelegate(t, "n1", "127.0.0.1:7001")

	assert.Equal(t, []byte("127.0.0.1:7001"), d.NodeMeta(512))
	assert.Nil(t, d.NodeMeta(4), "meta larger than the limit must not be truncated")
}

func TestDelegate_PushPullMergesClock(t *testing.T) {
	d1, c1, _ := newTestDelegate(t, "n1", "a1")
	d2, c2, m2 := newTestDelegate(t, "n2", "a2")

	c1.Tick()
	c1.Tick()
	c2.Tick()

	d2.MergeRemoteState(d1.LocalState(false), false)

	assert.Equal(t, int64(2), c2.Snapshot().Get("n1"))
	assert.Equal(t, int64(1), c2.Snapshot().Get("n2"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m2.GossipMessagesTotal.WithLabelValues("pull")))
}

func TestDelegate_IgnoresOwnClock(t *testing.T) {
	d, c, m := newTestDelegate(t, "n1", "a1")
	c.Tick()

	d.NotifyMsg(d.LocalState(false))

	assert.Equal(t, int64(1), c.Snapshot().Get("n1"))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.MergesTotal))
}

func TestDelegate_InvalidMessage(t *testing.T) {
	d, c, m := newTestDelegate(t, "n1", "a1")

	d.NotifyMsg([]byte{0xff, 0xff, 0xff})

	assert.Equal(t, 0, c.Snapshot().Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GossipMessagesTotal.WithLabelValues("invalid")))
}

func TestDelegate_BroadcastsLatestClock(t *testing.T) {
	d, c, _ := newTestDelegate(t, "n1", "a1")
	require.Equal(t, 0, d.QueuedBroadcasts())

	c.Tick()
	c.Tick()
	c.Tick()

	// Each change replaces the queued clock
	assert.Equal(t, 1, d.QueuedBroadcasts())

	msgs := d.GetBroadcasts(0, 1400)
	require.Len(t, msgs, 1)

	var msg codec.SyncRequest
	require.NoError(t, codec.Unmarshal(msgs[0], &msg))
	assert.Equal(t, "n1", msg.From)
	assert.Equal(t, int64(3), msg.Clock.Get("n1"))
}

func TestDelegate_ReceivedChangeIsRebroadcast(t *testing.T) {
	d1, c1, _ := newTestDelegate(t, "n1", "a1")
	d2, _, _ := newTestDelegate(t, "n2", "a2")

	c1.Tick()
	d2.NotifyMsg(d1.LocalState(false))
	assert.Equal(t, 1, d2.QueuedBroadcasts())

	// Nothing new: no rebroadcast
	d2.queue.Reset()
	d2.NotifyMsg(d1.LocalState(false))
	assert.Equal(t, 0, d2.QueuedBroadcasts())
}

func TestDelegate_PeersFromEvents(t *testing.T) {
	d, _, _ := newTestDelegate(t, "n1", "a1")

	node := func(name, meta string) *memberlist.Node {
		return &memberlist.Node{Name: name, Addr: net.ParseIP("127.0.0.1"), Port: 7946, Meta: []byte(meta)}
	}

	d.NotifyJoin(node("n1", "a1"))
	d.NotifyJoin(node("n3", "a3"))
	d.NotifyJoin(node("n2", "a2"))
	d.NotifyJoin(node("n4", ""))

	assert.Equal(t, []config.Peer{
		{ID: "n2", Addr: "a2"},
		{ID: "n3", Addr: "a3"},
	}, d.Peers())

	d.NotifyUpdate(node("n2", "a2-new"))
	d.NotifyLeave(node("n3", "a3"))

	assert.Equal(t, []config.Peer{{ID: "n2", Addr: "a2-new"}}, d.Peers())
}
