package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/inetmon/inetmon/internal/web/middleware"

var (
	methodAttr      = attribute.Key("http.request.method")
	routeAttr       = attribute.Key("http.route")
	statusClassAttr = attribute.Key("http.response.status_class")
	requestIDAttr   = attribute.Key("request.id")
)

// Metrics holds the viewer's HTTP instruments.
type Metrics struct {
	duration     metric.Float64Histogram
	requests     metric.Int64Counter
	active       metric.Int64UpDownCounter
	responseSize metric.Int64Histogram
	upgrades     metric.Int64Counter
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates Metrics on the given meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.duration, err = meter.Float64Histogram(
		"viewer.http.request.duration",
		metric.WithDescription("Duration of viewer requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.requests, err = meter.Int64Counter(
		"viewer.http.requests",
		metric.WithDescription("Viewer requests by route and status class"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.active, err = meter.Int64UpDownCounter(
		"viewer.http.active_requests",
		metric.WithDescription("Viewer requests in progress, including open live tails"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.responseSize, err = meter.Int64Histogram(
		"viewer.http.response.size",
		metric.WithDescription("Size of viewer responses"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.upgrades, err = meter.Int64Counter(
		"viewer.websocket.upgrades",
		metric.WithDescription("Live tail connections served, counted when they close"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// Middleware returns an HTTP middleware that records metrics for each request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			method := metric.WithAttributes(methodAttr.String(r.Method))
			m.active.Add(ctx, 1, method)
			defer m.active.Add(ctx, -1, method)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			if wrapped.statusCode == http.StatusSwitchingProtocols {
				m.upgrades.Add(ctx, 1, metric.WithAttributes(routeAttr.String(route)))
				return
			}

			attrs := metric.WithAttributes(
				methodAttr.String(r.Method),
				routeAttr.String(route),
				statusClassAttr.String(statusClass(wrapped.statusCode)),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			m.responseSize.Record(ctx, wrapped.written, attrs)
		})
	}
}

// statusClass maps 404 to "4xx".
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
