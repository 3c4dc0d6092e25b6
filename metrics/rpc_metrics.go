package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for onerpc_requests_total.
const (
	OutcomeOK      = "ok"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown_method"
	OutcomeInvalid = "invalid_request"
	OutcomeFault   = "fault"
)

var (
	RPCLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// RPCMetrics groups dispatcher metrics.
type RPCMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	DecodeErrorsTotal *prometheus.CounterVec
	FaultsTotal       *prometheus.CounterVec
}

// NewRPCMetrics creates and returns dispatcher metrics
func NewRPCMetrics() *RPCMetrics {
	return &RPCMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onerpc_requests_total",
				Help: "Total number of dispatched requests",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onerpc_request_duration_seconds",
				Help:    "Time spent dispatching a request in seconds",
				Buckets: RPCLatencyBuckets,
			},
			[]string{"method"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "onerpc_requests_in_flight",
				Help: "Number of requests currently being dispatched",
			},
		),
		DecodeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onerpc_decode_errors_total",
				Help: "Total number of payloads that could not be decoded",
			},
			[]string{"codec"},
		),
		FaultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onerpc_faults_total",
				Help: "Total number of handler faults",
			},
			[]string{"method"},
		),
	}
}

// Register registers all dispatcher metrics with the given registerer
func (m *RPCMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.DecodeErrorsTotal,
		m.FaultsTotal,
	)
}

// Start marks a request in flight. The returned func records the outcome and
// duration; call it exactly once.
func (m *RPCMetrics) Start(method string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.RequestsInFlight.Inc()
	return func(outcome string) {
		m.RequestsInFlight.Dec()
		m.RequestDuration.WithLabelValues(methodLabel(method, outcome)).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(methodLabel(method, outcome), outcome).Inc()
		if outcome == OutcomeFault {
			m.FaultsTotal.WithLabelValues(method).Inc()
		}
	}
}

// DecodeError counts a payload codec failed to decode.
func (m *RPCMetrics) DecodeError(codec string) {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.WithLabelValues(codec).Inc()
}

// methodLabel keeps unregistered and malformed method names out of the label
// set, since they come straight from the caller.
func methodLabel(method, outcome string) string {
	switch outcome {
	case OutcomeUnknown:
		return "unknown"
	case OutcomeInvalid:
		return "invalid"
	}
	return method
}
