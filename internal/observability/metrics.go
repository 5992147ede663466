package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes recorded by RecordMessage.
const (
	OutcomeAccepted      = "accepted"
	OutcomeReady         = "ready"
	OutcomeUnwhitelisted = "unwhitelisted"
	OutcomeMalformed     = "malformed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framelink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "host",
			Name:      "messages_total",
			Help:      "Inbound cross-context messages by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "endpoint",
			Name:      "dispatch_total",
			Help:      "Endpoint dispatch attempts by result.",
		},
		[]string{"result"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framelink",
			Subsystem: "endpoint",
			Name:      "dispatch_duration_seconds",
			Help:      "Endpoint handler execution time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	handshakeProbes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "handshake",
			Name:      "probes_total",
			Help:      "Ready probes broadcast by embedded contexts.",
		},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "handshake",
			Name:      "cycles_total",
			Help:      "Handshake cycles by outcome.",
		},
		[]string{"outcome"},
	)
	pendingCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "framelink",
			Subsystem: "handshake",
			Name:      "pending_calls",
			Help:      "Calls queued while awaiting a session.",
		},
	)
	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "embedded",
			Name:      "sends_total",
			Help:      "Outbound calls by selected transport.",
		},
		[]string{"transport"},
	)
	legacyNavigations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framelink",
			Subsystem: "legacy",
			Name:      "navigations_total",
			Help:      "Legacy frame navigations by success.",
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			inboundMessages,
			dispatches,
			dispatchDuration,
			handshakeProbes,
			handshakes,
			pendingCalls,
			sends,
			legacyNavigations,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMessage(transport, outcome string) {
	RegisterMetrics()
	inboundMessages.WithLabelValues(transport, outcome).Inc()
}

func RecordDispatch(result string, duration time.Duration) {
	RegisterMetrics()
	dispatches.WithLabelValues(result).Inc()
	dispatchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func RecordProbe() {
	RegisterMetrics()
	handshakeProbes.Inc()
}

func RecordHandshake(outcome string) {
	RegisterMetrics()
	handshakes.WithLabelValues(outcome).Inc()
}

func SetPendingCalls(n int) {
	RegisterMetrics()
	pendingCalls.Set(float64(n))
}

func RecordSend(transport string) {
	RegisterMetrics()
	sends.WithLabelValues(transport).Inc()
}

func RecordLegacyNavigation(success bool) {
	RegisterMetrics()
	legacyNavigations.WithLabelValues(strconv.FormatBool(success)).Inc()
}
