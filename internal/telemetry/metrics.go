package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/inetmon/inetmon/internal/monitor"

// MonitorMetrics holds the instruments recorded by the monitor loop.
// It satisfies notify.Metrics.
type MonitorMetrics struct {
	cycleDuration   metric.Float64Histogram
	cycleTotal      metric.Int64Counter
	probeLatency    metric.Float64Histogram
	probeLoss       metric.Int64Histogram
	dnsTotal        metric.Int64Counter
	conditionEvents metric.Int64Counter
	deliveries      metric.Int64Counter
	queueDepth      metric.Int64Gauge
}

// NewMonitorMetrics creates the monitor instruments on the global meter.
func NewMonitorMetrics() (*MonitorMetrics, error) {
	return NewMonitorMetricsWithMeter(otel.Meter(meterName))
}

// NewMonitorMetricsWithMeter creates the monitor instruments on meter.
func NewMonitorMetricsWithMeter(meter metric.Meter) (*MonitorMetrics, error) {
	cycleDuration, err := meter.Float64Histogram(
		"monitor.cycle.duration",
		metric.WithDescription("Duration of monitoring cycles in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cycleTotal, err := meter.Int64Counter(
		"monitor.cycle.total",
		metric.WithDescription("Total number of monitoring cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	probeLatency, err := meter.Float64Histogram(
		"monitor.probe.latency",
		metric.WithDescription("Average round-trip latency reported by the reachability probe"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	probeLoss, err := meter.Int64Histogram(
		"monitor.probe.loss",
		metric.WithDescription("Packet loss reported by the reachability probe"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	dnsTotal, err := meter.Int64Counter(
		"monitor.dns.total",
		metric.WithDescription("Total number of DNS resolution checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	conditionEvents, err := meter.Int64Counter(
		"monitor.condition.events",
		metric.WithDescription("Condition episode transitions"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(
		"monitor.notification.deliveries",
		metric.WithDescription("Notification delivery outcomes"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Gauge(
		"monitor.notification.queue_depth",
		metric.WithDescription("Number of undelivered notifications"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &MonitorMetrics{
		cycleDuration:   cycleDuration,
		cycleTotal:      cycleTotal,
		probeLatency:    probeLatency,
		probeLoss:       probeLoss,
		dnsTotal:        dnsTotal,
		conditionEvents: conditionEvents,
		deliveries:      deliveries,
		queueDepth:      queueDepth,
	}, nil
}

// RecordCycle records a completed cycle and whether the host was reachable.
func (m *MonitorMetrics) RecordCycle(ctx context.Context, duration time.Duration, reachable bool) {
	attrs := metric.WithAttributes(attribute.Bool("reachable", reachable))
	m.cycleDuration.Record(ctx, duration.Seconds(), attrs)
	m.cycleTotal.Add(ctx, 1, attrs)
}

// RecordProbe records the probe figures that were parsed from the output.
func (m *MonitorMetrics) RecordProbe(ctx context.Context, host string, latencyMs *float64, lossPercent *int) {
	attrs := metric.WithAttributes(attribute.String("probe.host", host))
	if latencyMs != nil {
		m.probeLatency.Record(ctx, *latencyMs, attrs)
	}
	if lossPercent != nil {
		m.probeLoss.Record(ctx, int64(*lossPercent), attrs)
	}
}

// RecordDNS records the outcome of a DNS check.
func (m *MonitorMetrics) RecordDNS(ctx context.Context, host string, ok bool) {
	m.dnsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dns.host", host),
		attribute.Bool("error", !ok),
	))
}

// RecordCondition records an Entered or Exited transition.
func (m *MonitorMetrics) RecordCondition(ctx context.Context, condition, kind string) {
	m.conditionEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("condition.name", condition),
		attribute.String("condition.transition", kind),
	))
}

// RecordDelivery records a notification delivery outcome.
func (m *MonitorMetrics) RecordDelivery(ctx context.Context, outcome string) {
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordQueueDepth records the current notification queue length.
func (m *MonitorMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}
