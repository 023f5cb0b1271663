package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	m.CatalogReloadsTotal.WithLabelValues("success").Add(2)
	m.IndexedChannels.Set(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues("success")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["channel_search_queries_total"])
	assert.True(t, names["channel_index_channels"])
	assert.True(t, names["catalog_reloads_total"])
	assert.True(t, names["catalog_load_retries_total"])

	assert.Panics(t, func() { New(reg) }, "collectors register once per registry")
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IndexGeneration.Set(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "channel_index_generation 7")
	assert.NotContains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusPage(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IndexedChannels.Set(1250)
	m.IndexedTerms.Set(9800)
	m.CircuitBreakerState.WithLabelValues("catalog-source").Set(1)

	rows, err := m.statusRows()
	require.NoError(t, err)
	assert.Contains(t, rows, statusRow{Name: "channel_index_channels", Value: "1250"})
	assert.Contains(t, rows, statusRow{Name: "channel_index_terms", Value: "9800"})
	assert.Contains(t, rows, statusRow{Name: `circuit_breaker_state{name="catalog-source"}`, Value: "1"})

	mux := m.mux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "channel_index_channels")
	assert.Contains(t, rec.Body.String(), "1250")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
