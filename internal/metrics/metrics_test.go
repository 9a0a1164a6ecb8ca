package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveProvider("stt", "mock", time.Second, nil)
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.EventAppended("error")
	m.StoreFailed("append")
	m.Pruned(3)
	m.RecordingUploaded("queued")
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New()
	m.EventAppended("final-transcript")
	m.EventAppended("final-transcript")
	m.StoreFailed("append")
	m.Pruned(2)
	m.Pruned(0)
	m.RecordingUploaded("failed")
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := testutil.ToFloat64(m.TranscriptEvents.WithLabelValues("final-transcript")); got != 2 {
		t.Fatalf("events = %v", got)
	}
	if got := testutil.ToFloat64(m.TranscriptWriteFailures.WithLabelValues("append")); got != 1 {
		t.Fatalf("failures = %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsPruned); got != 2 {
		t.Fatalf("pruned = %v", got)
	}
	if got := testutil.ToFloat64(m.RecordingUploads.WithLabelValues("failed")); got != 1 {
		t.Fatalf("uploads = %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveConnections); got != 1 {
		t.Fatalf("connections = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveProvider("llm", "openai", 150*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `interview_provider_duration_seconds_count{capability="llm",provider="openai",status="ok"} 1`) {
		t.Fatalf("provider histogram missing from output:\n%s", body)
	}
}
