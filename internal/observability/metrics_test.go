package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordDecision("redirect", "session_missing")
	m.RecordDecision("redirect", "session_missing")
	m.RecordSync("evicted")
	m.RecordEvent("session_cleared")
	m.RecordRequest("GET", 307, 5*time.Millisecond)
	m.RecordError("UNAUTHORIZED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("redirect", "session_missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncs.WithLabelValues("evicted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "307")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gateway_guard_decisions_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision("allow", "public")
		m.RecordSync("idle")
		m.RecordEvent("x")
		m.RecordRequest("GET", 200, time.Millisecond)
		m.RecordError("X")
	})
}
