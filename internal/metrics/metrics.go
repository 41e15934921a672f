// Package metrics exposes client counters to Prometheus.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ircclient"

// Metrics holds the collectors for one client process.
type Metrics struct {
	IngestBytes  prometheus.Counter
	Lines        *prometheus.CounterVec
	Replies      *prometheus.CounterVec
	LineErrors   *prometheus.CounterVec
	SessionState prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		IngestBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of bytes received from the server",
		}),
		Lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "framer",
			Name:      "lines_total",
			Help:      "Total number of lines framed, by command",
		}, []string{"command"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "replies_total",
			Help:      "Total number of replies written, by status",
		}, []string{"status"}),
		LineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "framer",
			Name:      "line_errors_total",
			Help:      "Total number of lines that failed to process, by kind",
		}, []string{"kind"}),
		SessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Session state (0=connecting, 1=handshaking, 2=streaming, 3=draining, 4=closed)",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.IngestBytes, m.Lines, m.Replies, m.LineErrors, m.SessionState)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// AddIngestBytes counts bytes handed to the framer.
func (m *Metrics) AddIngestBytes(n int) {
	if m == nil {
		return
	}
	m.IngestBytes.Add(float64(n))
}

// IncLine counts one framed line.
func (m *Metrics) IncLine(command string) {
	if m == nil {
		return
	}
	m.Lines.WithLabelValues(command).Inc()
}

// IncReply counts one reply write attempt.
func (m *Metrics) IncReply(status string) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(status).Inc()
}

// IncLineError counts one line that could not be processed.
func (m *Metrics) IncLineError(kind string) {
	if m == nil {
		return
	}
	m.LineErrors.WithLabelValues(kind).Inc()
}

// SetSessionState records the current session state.
func (m *Metrics) SetSessionState(state int) {
	if m == nil {
		return
	}
	m.SessionState.Set(float64(state))
}
