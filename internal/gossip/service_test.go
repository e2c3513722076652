package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dotclock/internal/metrics"
	"dotclock/internal/replica"
)

func startTestService(t *testing.T, id string, seeds ...string) (*Service, *replica.Clock) {
	t.Helper()

	logger := zaptest.NewLogger(t).Named(id)
	m := metrics.New(id, nil)
	c := replica.NewClock(id, logger, m)

	svc, err := NewService(Config{
		BindAddr:         "127.0.0.1",
		BindPort:         0,
		Seeds:            seeds,
		GossipInterval:   20 * time.Millisecond,
		ProbeInterval:    100 * time.Millisecond,
		ProbeTimeout:     50 * time.Millisecond,
		PushPullInterval: 200 * time.Millisecond,
	}, c, id+".grpc", logger, m)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Shutdown()
	})
	return svc, c
}

func TestService_ClusterConverges(t *testing.T) {
	s1, c1 := startTestService(t, "n1")
	s2, c2 := startTestService(t, "n2", s1.Addr())

	assert.Eventually(t, func() bool {
		return s1.NumMembers() == 2 && s2.NumMembers() == 2
	}, 5*time.Second, 20*time.Millisecond)

	peers := s1.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "n2", peers[0].ID)
	assert.Equal(t, "n2.grpc", peers[0].Addr)

	c1.Tick()
	c2.Tick()

	assert.Eventually(t, func() bool {
		return c1.Snapshot().Equal(c2.Snapshot()) && c1.Snapshot().Len() == 2
	}, 5*time.Second, 20*time.Millisecond)
}
