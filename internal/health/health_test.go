package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadiness(t *testing.T) {
	s := New(0, nil)
	h := s.Handler()

	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := get(t, h, path); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s before ready: expected 503, got %d", path, rec.Code)
		}
	}

	s.SetReady(true)
	rec := get(t, h, "/readyz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("expected ok, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsMountedWhenProvided(t *testing.T) {
	if rec := get(t, New(0, nil).Handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics handler, got %d", rec.Code)
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("narrator_pipeline_runs_total 1\n"))
	})
	rec := get(t, New(0, metrics).Handler(), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "narrator_pipeline_runs_total") {
		t.Fatalf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}
