package monitor

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionMetrics(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordSessionStart()
	m.RecordSessionStart()
	m.RecordSessionDone("success")

	if got := testutil.ToFloat64(m.sessionsStarted); got != 2 {
		t.Fatalf("sessionsStarted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Fatalf("activeSessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sessionsDone.WithLabelValues("success")); got != 1 {
		t.Fatalf("sessionsDone{success} = %v, want 1", got)
	}
}

func TestQueryMetrics(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordPollAttempt()
	m.RecordAuthRetry()
	m.RecordQueryError("unauthorized")
	m.ObserveQueryLatency(0.05)

	if got := testutil.ToFloat64(m.pollAttempts); got != 1 {
		t.Fatalf("pollAttempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.queryErrors.WithLabelValues("unauthorized")); got != 1 {
		t.Fatalf("queryErrors{unauthorized} = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordPollAttempt()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("metrics endpoint status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty metrics body")
	}
}
