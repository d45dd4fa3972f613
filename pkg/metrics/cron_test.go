package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsCountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("order-expiry")
	m.IncSuccess("order-expiry")
	m.IncFailure("release-backlog")
	m.ObserveDuration("order-expiry", 120*time.Millisecond)

	success := testutil.ToFloat64(m.runs.WithLabelValues("order-expiry", "success"))
	if success != 2 {
		t.Fatalf("expected 2 successful sweeps, got %v", success)
	}
	failure := testutil.ToFloat64(m.runs.WithLabelValues("release-backlog", "failure"))
	if failure != 1 {
		t.Fatalf("expected 1 failed sweep, got %v", failure)
	}
	last := testutil.ToFloat64(m.lastSuccess.WithLabelValues("order-expiry"))
	if last <= 0 {
		t.Fatalf("expected last-success timestamp to be set, got %v", last)
	}
	if count := testutil.CollectAndCount(m.duration, "shopstream_cron_sweep_duration_seconds"); count != 1 {
		t.Fatalf("expected 1 duration series, got %d", count)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var m *CronJobMetrics
	m.IncSuccess("order-expiry")
	m.IncFailure("order-expiry")
	m.ObserveDuration("order-expiry", time.Second)

	noop := NewCronJobMetrics(nil)
	noop.IncSuccess("")
	noop.ObserveDuration("", 0)
}
