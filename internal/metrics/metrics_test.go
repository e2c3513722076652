package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_PrivateRegistries(t *testing.T) {
	// Two nodes in one process must not collide on registration.
	m1 := New("n1", nil)
	m2 := New("n2", nil)

	m1.EventsTotal.Inc()
	m1.EventsTotal.Inc()
	m2.EventsTotal.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m1.EventsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m2.EventsTotal))
}

func TestServer_Endpoints(t *testing.T) {
	m := New("n1", nil)
	m.RPCRequestsTotal.WithLabelValues("Sync", "OK").Inc()

	srv := httptest.NewServer(NewServer(":0", m, zap.NewNop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dotclock_rpc_requests_total{code="OK",method="Sync",node_id="n1"} 1`)
}
