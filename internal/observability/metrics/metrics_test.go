package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveAttempt("succeeded")
	m.ObserveAttempt("succeeded")
	m.ObserveAttempt("failed")
	m.ObserveStep("creating", 0.2, false)
	m.ObserveBestEffortFailure("assigning")
	m.ObserveMatchFetch("cache", false)

	families := gather(t, reg)

	attempts := families["solhealth_booking_attempts_total"]
	if attempts == nil {
		t.Fatal("attempts_total not registered")
	}
	counts := map[string]float64{}
	for _, metric := range attempts.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "state" {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if counts["succeeded"] != 2 || counts["failed"] != 1 {
		t.Fatalf("unexpected attempt counts %v", counts)
	}

	latency := families["solhealth_booking_step_latency_seconds"]
	if latency == nil || latency.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatal("expected one step latency sample")
	}
	if families["solhealth_booking_best_effort_failures_total"] == nil {
		t.Fatal("best_effort_failures_total not registered")
	}
	if families["solhealth_match_fetch_total"] == nil {
		t.Fatal("match fetch_total not registered")
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAttempt("succeeded")
	m.ObserveStep("syncing", 0.1, true)
	m.ObserveBestEffortFailure("assigning")
	m.ObserveMatchFetch("backend", true)
}
