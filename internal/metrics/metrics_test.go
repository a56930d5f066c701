package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExport(t *testing.T) {
	m, err := NewWithRegistry(prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("NewWithRegistry() error = %v", err)
	}

	m.ObserveExport("clean", false, 20*time.Millisecond)
	m.ObserveExport("clean", true, 30*time.Millisecond)
	m.ObserveExport("tracked", false, time.Millisecond)

	if got := testutil.ToFloat64(m.exportsTotal.WithLabelValues("clean", "ok")); got != 1 {
		t.Errorf("clean ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.exportsTotal.WithLabelValues("clean", "fallback")); got != 1 {
		t.Errorf("clean fallback = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.exportDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCounters(t *testing.T) {
	m, err := NewWithRegistry(prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("NewWithRegistry() error = %v", err)
	}

	m.AddApplied("in_text", 3)
	m.AddApplied("in_text", 0)
	m.IncSkip("absent")
	m.IncSkip("absent")
	m.IncChangeAppended("RENUMBER")
	m.IncHTTPRequest("GET", 200)

	if got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("in_text")); got != 3 {
		t.Errorf("applied = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.skipsTotal.WithLabelValues("absent")); got != 2 {
		t.Errorf("skips = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.changesAppended.WithLabelValues("RENUMBER")); got != 1 {
		t.Errorf("appended = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("http = %v, want 1", got)
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewWithRegistry(reg, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewWithRegistry(reg, reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveExport("clean", false, time.Second)
	m.AddApplied("reference", 1)
	m.IncSkip("chain")
	m.IncChangeAppended("DELETE")
	m.IncHTTPRequest("POST", 500)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.IncSkip("config")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `citation_export_skips_total{kind="config"} 1`) {
		t.Fatalf("skip counter missing from exposition:\n%s", rec.Body.String())
	}
}
