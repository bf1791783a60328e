package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/inetmon/inetmon/internal/web/middleware"
)

func TestNewMetrics(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics_RecordsByRouteAndStatusClass(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := middleware.NewMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/api/log", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lines") == "0" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	for _, q := range []string{"?lines=1", "?lines=2", "?lines=0"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/log"+q, http.NoBody))
	}

	got := collect(t, reader)

	requests, ok := got["viewer.http.requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := make(map[string]int64)
	for _, dp := range requests.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("http.route"))
		class, _ := dp.Attributes.Value(attribute.Key("http.response.status_class"))
		counts[route.AsString()+" "+class.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"/api/log 2xx": 2, "/api/log 4xx": 1}, counts)

	active, ok := got["viewer.http.active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value)
	}

	_, ok = got["viewer.http.request.duration"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestMetrics_PassesResponseThrough(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
