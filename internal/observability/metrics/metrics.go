package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the match and booking flows.
type BookingMetrics struct {
	attemptsTotal      *prometheus.CounterVec
	stepLatency        *prometheus.HistogramVec
	bestEffortFailures *prometheus.CounterVec
	matchFetchTotal    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solhealth",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by terminal state",
		}, []string{"state"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "solhealth",
			Subsystem: "booking",
			Name:      "step_latency_seconds",
			Help:      "Latency of each backend call in the booking sequence",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step", "result"}),
		bestEffortFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solhealth",
			Subsystem: "booking",
			Name:      "best_effort_failures_total",
			Help:      "Failures swallowed by best-effort steps",
		}, []string{"step"}),
		matchFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solhealth",
			Subsystem: "match",
			Name:      "fetch_total",
			Help:      "Match fetches by result and source",
		}, []string{"result", "source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.stepLatency, m.bestEffortFailures, m.matchFetchTotal)
	return m
}

// ObserveAttempt counts an attempt that reached a terminal state.
func (m *BookingMetrics) ObserveAttempt(state string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(state).Inc()
}

func (m *BookingMetrics) ObserveStep(step string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "error"
	}
	m.stepLatency.WithLabelValues(step, result).Observe(seconds)
}

func (m *BookingMetrics) ObserveBestEffortFailure(step string) {
	if m == nil {
		return
	}
	m.bestEffortFailures.WithLabelValues(step).Inc()
}

// ObserveMatchFetch counts a match lookup; source is "cache" or "backend".
func (m *BookingMetrics) ObserveMatchFetch(source string, failed bool) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "error"
	}
	m.matchFetchTotal.WithLabelValues(result, source).Inc()
}
