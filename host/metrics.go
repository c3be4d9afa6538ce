package host

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
)

// Call outcomes recorded by Metrics.
const (
	outcomeOK         = "ok"
	outcomeGuestError = "guest_error"
	outcomeTrap       = "trap"
	outcomeMarshal    = "marshal_error"
	outcomeProtocol   = "protocol_violation"
	outcomeError      = "error"
)

// Metrics collects per-engine call statistics.
type Metrics struct {
	calls      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	traps      *prometheus.CounterVec
	violations *prometheus.CounterVec
	inFlight   prometheus.Gauge
}

// NewMetrics creates the engine metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsuki",
				Subsystem: "host",
				Name:      "calls_total",
				Help:      "Guest export invocations by outcome.",
			},
			[]string{"plugin", "export", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tsuki",
				Subsystem: "host",
				Name:      "call_duration_seconds",
				Help:      "Guest export invocation latency, including instantiation.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"plugin", "export"},
		),
		traps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsuki",
				Subsystem: "host",
				Name:      "traps_total",
				Help:      "Guest traps by export.",
			},
			[]string{"plugin", "export"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsuki",
				Subsystem: "host",
				Name:      "protocol_violations_total",
				Help:      "Inbound requests the guest finished without answering.",
			},
			[]string{"plugin"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tsuki",
			Subsystem: "host",
			Name:      "executions_in_flight",
			Help:      "Execution contexts currently alive.",
		}),
	}
}

func (m *Metrics) observe(plugin, export string, seconds float64, err error) {
	outcome := outcomeFor(err)
	m.calls.WithLabelValues(plugin, export, outcome).Inc()
	m.duration.WithLabelValues(plugin, export).Observe(seconds)
	switch outcome {
	case outcomeTrap:
		m.traps.WithLabelValues(plugin, export).Inc()
	case outcomeProtocol:
		m.violations.WithLabelValues(plugin).Inc()
	}
}

func outcomeFor(err error) string {
	var (
		guestErr    *domainerrors.GuestError
		trapErr     *domainerrors.TrapError
		marshalErr  *domainerrors.MarshalError
		protocolErr *domainerrors.ProtocolViolationError
	)
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &protocolErr):
		return outcomeProtocol
	case errors.As(err, &guestErr):
		return outcomeGuestError
	case errors.As(err, &trapErr):
		return outcomeTrap
	case errors.As(err, &marshalErr):
		return outcomeMarshal
	}
	return outcomeError
}
