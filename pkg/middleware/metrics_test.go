package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the series of c whose labels include all of want, or nil.
func findMetric(t *testing.T, c prometheus.Collector, want map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		var d dto.Metric
		require.NoError(t, m.Write(&d))

		got := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		matched := true
		for k, v := range want {
			if got[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return &d
		}
	}
	return nil
}

func gatewayRouter(service string, handler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Post("/api/v1/gateway/{operation}", handler)
	return r
}

func TestPrometheusMetrics_RecordsByRoute(t *testing.T) {
	router := gatewayRouter("metrics-route", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_IMPLEMENTED"}}`))
	})

	for _, op := range []string{"authorize-with-token", "authorize-and-capture-with-token"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/gateway/"+op, nil))
	}

	labels := map[string]string{"service": "metrics-route", "route": "/api/v1/gateway/{operation}"}

	counter := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-route", "method": http.MethodPost, "route": "/api/v1/gateway/{operation}", "status": "501",
	})
	require.NotNil(t, counter)
	assert.Equal(t, 2.0, counter.GetCounter().GetValue())

	latency := findMetric(t, httpRequestDuration, labels)
	require.NotNil(t, latency)
	assert.Equal(t, uint64(2), latency.GetHistogram().GetSampleCount())

	size := findMetric(t, httpResponseSize, labels)
	require.NotNil(t, size)
	assert.Equal(t, float64(2*len(`{"error":{"code":"NOT_IMPLEMENTED"}}`)), size.GetHistogram().GetSampleSum())
}

func TestPrometheusMetrics_DefaultStatusIs200(t *testing.T) {
	router := gatewayRouter("metrics-default", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/gateway/capture", nil))

	assert.NotNil(t, findMetric(t, httpRequestsTotal, map[string]string{"service": "metrics-default", "status": "200"}))
}

func TestPrometheusMetrics_InFlightReturnsToZero(t *testing.T) {
	var during float64
	router := gatewayRouter("metrics-inflight", func(w http.ResponseWriter, _ *http.Request) {
		m := findMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
		during = m.GetGauge().GetValue()
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/gateway/void", nil))

	assert.Equal(t, 1.0, during)
	after := findMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
	require.NotNil(t, after)
	assert.Equal(t, 0.0, after.GetGauge().GetValue())
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	router := gatewayRouter("metrics-unmatched", func(http.ResponseWriter, *http.Request) {})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.NotNil(t, findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-unmatched", "route": unmatchedRoute, "status": "404",
	}))
}
