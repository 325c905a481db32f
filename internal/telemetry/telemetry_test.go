package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSetupServesPipelineMetrics(t *testing.T) {
	shutdown, handler, err := Setup("narrator-test", "dev", newLogger())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	if handler == nil {
		t.Fatal("expected metrics handler")
	}

	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordRun(ctx, "success")
	m.RecordStage(ctx, "synthesized", 1500*time.Millisecond)
	m.RecordChunks(ctx, "rewrite", 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"narrator_pipeline_runs", `outcome="success"`, "narrator_pipeline_stage_duration", "narrator_chunks"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRun(ctx, "success")
	m.RecordStage(ctx, "extracted", time.Second)
	m.RecordChunks(ctx, "synthesis", 2)
}
