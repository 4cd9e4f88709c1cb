package pubsubx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "emulator_console"
	metricsSubsystem = "pubsub"

	RefreshOutcomeApplied   = "applied"
	RefreshOutcomeDiscarded = "discarded"
	RefreshOutcomeFailed    = "failed"
)

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	mutationTotal   *prometheus.CounterVec
	topics          prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "refresh_total",
			Help:      "Topic list refreshes by outcome.",
		}, []string{"outcome"}),
		mutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "mutation_total",
			Help:      "Mutations that reached a terminal state, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		topics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "topics",
			Help:      "Topics currently held by the store.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of the requests sent to the emulator.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "code"}),
	}

	if reg != nil {
		reg.MustRegister(m.refreshTotal, m.mutationTotal, m.topics, m.requestDuration)
	}

	return m
}

func (m *Metrics) observeRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeMutation(kind MutationKind, state MutationState) {
	if m == nil {
		return
	}
	m.mutationTotal.WithLabelValues(kind.String(), state.String()).Inc()
}

func (m *Metrics) setTopics(n int) {
	if m == nil {
		return
	}
	m.topics.Set(float64(n))
}

// ObserveRequest records an emulator round trip. A zero status means no response was received.
func (m *Metrics) ObserveRequest(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requestDuration.WithLabelValues(operation, code).Observe(d.Seconds())
}
