package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveImport(t *testing.T) {
	m := New()

	m.ObserveImport("Crédit Mutuel", "text", 3, 1, 20*time.Millisecond, nil)
	m.ObserveImport("Crédit Mutuel", "text", 2, 0, 10*time.Millisecond, nil)
	m.ObserveImport("Inconnu", "text", 0, 0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("Crédit Mutuel", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("Inconnu", StatusFailed)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsTotal.WithLabelValues("Crédit Mutuel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsDropped.WithLabelValues("Crédit Mutuel")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveImport("x", "text", 1, 0, time.Second, nil)
		m.ObserveRequest("/v1/imports", "200")
		m.AddPurged(3)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/v1/imports", "201")
	m.AddPurged(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `orixis_http_requests_total{code="201",route="/v1/imports"} 1`)
	assert.Contains(t, body, "orixis_retention_purged_total 2")
}
