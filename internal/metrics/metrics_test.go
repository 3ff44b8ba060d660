package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.Request("solution")
	m.Request("solution")
	m.Request(RouteEndpoint)
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("solution")); got != 2 {
		t.Errorf("solution requests = %v, want 2", got)
	}
	m.RegistryChanged(5, 1)
	m.RegistryChanged(6, 0)
	if got := testutil.ToFloat64(m.reloadsTotal); got != 2 {
		t.Errorf("reloads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.registrySize); got != 6 {
		t.Errorf("solutions = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.registryWarnings); got != 0 {
		t.Errorf("warnings = %v, want 0", got)
	}
	m.ObserveRewrite(3 * time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body, _ := io.ReadAll(w.Result().Body)
	for _, want := range []string{
		`fmsite_requests_total{route="endpoint"} 1`,
		"fmsite_registry_reloads_total 2",
		"fmsite_html_rewrite_seconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
