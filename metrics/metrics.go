// Package metrics exposes the atomic counters of master sessions and slave
// servers to Prometheus.
//
// The counters stay owned by the session or server; collectors read them on
// scrape through CounterFunc and GaugeFunc.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/arloliu/go-slink/master"
	"github.com/arloliu/go-slink/slave"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slink"

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RegisterMaster registers the metrics of a master session. labels are added
// as constant labels, e.g. {"link": "/dev/ttyUSB0"}.
func RegisterMaster(reg prometheus.Registerer, m *master.Metrics, labels prometheus.Labels) error {
	return register(reg, "master", labels,
		counter("commands_sent_total", "Commands transmitted, excluding retransmissions.", &m.CommandSendCount),
		counter("retries_total", "Retransmissions after a reply timeout.", &m.RetryCount),
		counter("timeouts_total", "Commands failed after exhausting retries.", &m.TimeoutCount),
		counter("mismatches_total", "Replies whose address or counter failed the pending command.", &m.MismatchCount),
		counter("pushes_received_total", "Unsolicited messages received.", &m.PushRecvCount),
		counter("pushes_dropped_total", "Unsolicited messages dropped on a full delivery queue.", &m.PushDropCount),
		counter("frames_invalid_total", "Received frames that failed to unpack.", &m.FrameInvalidCount),
		gauge("in_flight", "Commands awaiting a reply.", &m.InFlightGauge),
	)
}

// RegisterSlave registers the metrics of a slave server.
func RegisterSlave(reg prometheus.Registerer, m *slave.Metrics, labels prometheus.Labels) error {
	return register(reg, "slave", labels,
		counter("frames_received_total", "Frames read from the link.", &m.FrameRecvCount),
		counter("frames_invalid_total", "Frames answered with INVALID or BAD_REQUEST.", &m.FrameInvalidCount),
		counter("responses_sent_total", "Responses written.", &m.ResponseSendCount),
		counter("pushes_sent_total", "PUSH notifications written.", &m.PushSendCount),
		counter("handler_errors_total", "Unit handler calls answered with ERROR.", &m.HandlerErrCount),
		gauge("subscriptions", "Active subscriptions.", &m.SubscriptionGauge),
	)
}

type collectorFunc func(subsystem string, labels prometheus.Labels) prometheus.Collector

func counter(name, help string, v *atomic.Uint64) collectorFunc {
	return func(subsystem string, labels prometheus.Labels) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(v.Load()) })
	}
}

func gauge(name, help string, v *atomic.Int64) collectorFunc {
	return func(subsystem string, labels prometheus.Labels) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(v.Load()) })
	}
}

func register(reg prometheus.Registerer, subsystem string, labels prometheus.Labels, fns ...collectorFunc) error {
	for _, fn := range fns {
		if err := reg.Register(fn(subsystem, labels)); err != nil {
			return err
		}
	}

	return nil
}
