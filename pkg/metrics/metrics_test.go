package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RankRequestsTotal.WithLabelValues("matrix", "ok").Inc()
	m.NonConvergedTotal.Inc()

	if got := testutil.ToFloat64(m.RankRequestsTotal.WithLabelValues("matrix", "ok")); got != 1 {
		t.Errorf("rank_requests_total = %v, want 1", got)
	}
	count, err := testutil.GatherAndCount(reg, "pagerank_non_converged_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error: %v", err)
	}
	if count != 1 {
		t.Errorf("series count = %d, want 1", count)
	}
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
