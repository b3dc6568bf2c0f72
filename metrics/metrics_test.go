package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arloliu/go-slink/master"
	"github.com/arloliu/go-slink/slave"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}

		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}

		return m.GetGauge().GetValue()
	}

	require.FailNow(t, "metric not found", name)

	return 0
}

func TestRegisterMaster(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	var m master.Metrics
	require.NoError(RegisterMaster(reg, &m, prometheus.Labels{"link": "pipe"}))

	m.CommandSendCount.Add(3)
	m.RetryCount.Add(2)
	m.InFlightGauge.Store(1)

	require.InDelta(3, gatherValue(t, reg, "slink_master_commands_sent_total"), 0)
	require.InDelta(2, gatherValue(t, reg, "slink_master_retries_total"), 0)
	require.InDelta(1, gatherValue(t, reg, "slink_master_in_flight"), 0)
	require.InDelta(0, gatherValue(t, reg, "slink_master_timeouts_total"), 0)

	// the same labels cannot be registered twice
	require.Error(RegisterMaster(reg, &m, prometheus.Labels{"link": "pipe"}))
}

func TestRegisterSlave(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	var m slave.Metrics
	require.NoError(RegisterSlave(reg, &m, nil))

	m.PushSendCount.Add(4)
	m.SubscriptionGauge.Store(2)

	require.InDelta(4, gatherValue(t, reg, "slink_slave_pushes_sent_total"), 0)
	require.InDelta(2, gatherValue(t, reg, "slink_slave_subscriptions"), 0)
}

func TestHandler(t *testing.T) {
	require := require.New(t)

	reg := NewRegistry()
	var m slave.Metrics
	require.NoError(RegisterSlave(reg, &m, nil))
	m.FrameRecvCount.Add(7)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	require.Contains(string(body), "slink_slave_frames_received_total 7")
	require.Contains(string(body), "go_goroutines")
}
