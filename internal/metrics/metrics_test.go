package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RefetchedLocations.Add(2)
	m.UpstreamCalls.WithLabelValues(OutcomeOK).Inc()

	if got := testutil.ToFloat64(m.RefetchedLocations); got != 2 {
		t.Errorf("refetched = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"notice_cache_refetched_locations_total 2",
		`notice_cache_upstream_calls_total{outcome="ok"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_NilRegistry(t *testing.T) {
	// two instances must not collide on registration
	New(nil)
	New(nil)
}
