package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/metrics"
)

var _ leave.Observer = (*metrics.Metrics)(nil)

func TestMetrics_ObserverCounters(t *testing.T) {
	m := metrics.New()

	m.Transition("approve", "ok")
	m.Transition("approve", "ok")
	m.Transition("approve", leave.CodeInsufficientBalance)
	m.LedgerEntry(generic.TxConsumption, generic.Days(2.5))
	m.LedgerEntry(generic.TxReversal, generic.Days(2.5))

	expected := `
# HELP leave_transitions_total Leave request operations by action and outcome code.
# TYPE leave_transitions_total counter
leave_transitions_total{action="approve",outcome="INSUFFICIENT_BALANCE"} 1
leave_transitions_total{action="approve",outcome="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "leave_transitions_total"))

	expected = `
# HELP leave_ledger_days_total Absolute days moved through the ledger, by type.
# TYPE leave_ledger_days_total counter
leave_ledger_days_total{type="consumption"} 2.5
leave_ledger_days_total{type="reversal"} 2.5
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "leave_ledger_days_total"))
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/leave/requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	for _, path := range []string{"/api/leave/requests/1", "/api/leave/requests/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	expected := `
# HELP leave_http_requests_total HTTP requests by method, route and status.
# TYPE leave_http_requests_total counter
leave_http_requests_total{method="GET",route="/api/leave/requests/{id}",status="404"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "leave_http_requests_total"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "leave_http_request_duration_seconds")
}
