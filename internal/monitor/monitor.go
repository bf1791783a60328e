// Package monitor runs the fixed-rate monitoring loop: it samples the
// probes, feeds the condition detectors, turns transitions into
// notifications and publishes a status snapshot after every cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inetmon/inetmon/internal/condition"
	"github.com/inetmon/inetmon/internal/eventlog"
	"github.com/inetmon/inetmon/internal/probe"
	"github.com/inetmon/inetmon/internal/resilience"
	"github.com/inetmon/inetmon/internal/status"
)

const tracerName = "github.com/inetmon/inetmon/internal/monitor"

// Detector names.
const (
	ConditionConnectivity = "connectivity"
	ConditionPacketLoss   = "packet_loss"
	ConditionLatency      = "latency"
	ConditionDNS          = "dns"
)

// Prober runs the reachability check.
type Prober interface {
	Probe(ctx context.Context) (probe.Result, error)
	Host() string
}

// Resolver runs the DNS check.
type Resolver interface {
	Resolve(ctx context.Context) bool
}

// Notifier delivers notifications. It never returns errors.
type Notifier interface {
	Notify(ctx context.Context, title, body string)
	Flush(ctx context.Context) int
	QueueLen() int
}

// TransportHealth reports the notification transport's delivery health.
type TransportHealth interface {
	Health() resilience.Health
}

// Metrics receives per-cycle measurements.
type Metrics interface {
	RecordCycle(ctx context.Context, duration time.Duration, reachable bool)
	RecordProbe(ctx context.Context, host string, latencyMs *float64, lossPercent *int)
	RecordDNS(ctx context.Context, host string, ok bool)
	RecordCondition(ctx context.Context, condition, kind string)
}

// Config holds configuration for a Monitor.
type Config struct {
	// Interval is the cycle period.
	Interval time.Duration

	// Trigger is the threshold for connectivity, packet loss and latency.
	Trigger int

	// DNSFailureTrigger is the threshold for DNS.
	DNSFailureTrigger int

	// HighLatencyMs is the exclusive latency ceiling.
	HighLatencyMs float64

	// DNSHost is the name resolved by Resolver, used in messages.
	DNSHost string

	// Location renders times in notifications. Defaults to UTC.
	Location *time.Location

	// Debug records per-cycle measurements to the event log.
	Debug bool

	// StatusPath is where the status snapshot is written. Empty disables it.
	StatusPath string

	Prober   Prober
	Resolver Resolver
	Notifier Notifier
	Recorder eventlog.Recorder

	// Transport is reported on the liveness endpoint when set.
	Transport TransportHealth

	Clock   clock.Clock
	Metrics Metrics
	Tracer  trace.Tracer
	Logger  zerolog.Logger
}

// Monitor owns the four detectors and drives one cycle at a time.
// Cycles must not run concurrently; Stats may be read from any goroutine.
type Monitor struct {
	interval      time.Duration
	highLatencyMs float64
	dnsHost       string
	location      *time.Location
	debug         bool
	statusPath    string

	prober    Prober
	resolver  Resolver
	notifier  Notifier
	recorder  eventlog.Recorder
	transport TransportHealth

	connectivity *condition.Detector[probe.Result]
	packetLoss   *condition.Detector[int]
	latency      *condition.Detector[float64]
	dns          *condition.Detector[bool]

	clock   clock.Clock
	metrics Metrics
	tracer  trace.Tracer
	logger  zerolog.Logger

	startedAt     time.Time
	lastCycleAt   atomic.Int64
	lastReachable atomic.Bool
	queueDepth    atomic.Int64
	cycles        atomic.Int64
}

// New creates a Monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Prober == nil {
		return nil, errors.New("monitor: prober is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("monitor: resolver is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("monitor: notifier is required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("monitor: recorder is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor: invalid interval %s", cfg.Interval)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ceiling := cfg.HighLatencyMs

	return &Monitor{
		interval:      cfg.Interval,
		highLatencyMs: ceiling,
		dnsHost:       cfg.DNSHost,
		location:      loc,
		debug:         cfg.Debug,
		statusPath:    cfg.StatusPath,
		prober:        cfg.Prober,
		resolver:      cfg.Resolver,
		notifier:      cfg.Notifier,
		recorder:      cfg.Recorder,
		transport:     cfg.Transport,
		connectivity: condition.NewDetector(ConditionConnectivity, cfg.Trigger, func(r probe.Result) bool {
			return !r.Success
		}),
		packetLoss: condition.NewDetector(ConditionPacketLoss, cfg.Trigger, func(loss int) bool {
			return loss > 0
		}),
		latency: condition.NewDetector(ConditionLatency, cfg.Trigger, func(ms float64) bool {
			return ms > ceiling
		}),
		dns: condition.NewDetector(ConditionDNS, cfg.DNSFailureTrigger, func(resolved bool) bool {
			return !resolved
		}),
		clock:     clk,
		metrics:   cfg.Metrics,
		tracer:    tracer,
		logger:    cfg.Logger.With().Str("component", "monitor").Logger(),
		startedAt: clk.Now(),
	}, nil
}

// Run executes cycles at a fixed rate until ctx is cancelled, which is
// observed only between cycles. It returns nil on cancellation and the
// cycle error when the probe tool is missing.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().
		Str("ping_host", m.prober.Host()).
		Dur("interval", m.interval).
		Msg("monitor loop started")

	for {
		if ctx.Err() != nil {
			m.logger.Info().Int64("cycles", m.cycles.Load()).Msg("monitor loop stopped")
			return nil
		}

		start := m.clock.Now()
		// In-flight probes and deliveries finish on their own timeouts.
		if err := m.RunCycle(context.WithoutCancel(ctx)); err != nil {
			return err
		}

		delay := nextDelay(m.interval, m.clock.Since(start))
		if delay <= 0 {
			continue
		}

		timer := m.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// nextDelay returns how long to sleep so that cycles start every interval.
// Overlong cycles start the next one immediately.
func nextDelay(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

// cycleState tracks how far a cycle got, for panic recovery.
type cycleState struct {
	connectivityObserved bool
	reachable            bool
	result               probe.Result
	resolved             *bool
}

// RunCycle executes a single monitoring cycle. The only error it returns
// wraps probe.ErrToolMissing; a panic is recovered and treated as a failed
// probe.
func (m *Monitor) RunCycle(ctx context.Context) (err error) {
	start := m.clock.Now()
	ctx, span := m.tracer.Start(ctx, "monitor.cycle")
	defer span.End()

	state := &cycleState{}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("panic in monitoring cycle")
			m.recorder.Record(false, fmt.Sprintf("Monitoring cycle failed: %v", r))
			span.SetStatus(codes.Error, "panic")

			if !state.connectivityObserved {
				m.failCycle(ctx, state, r)
			}
			err = nil
		}
		if err != nil {
			return
		}
		m.finishCycle(ctx, state, m.clock.Since(start))
		span.SetAttributes(
			attribute.Bool("monitor.reachable", state.reachable),
			attribute.Int("monitor.queue_depth", m.notifier.QueueLen()),
		)
	}()

	res, perr := m.prober.Probe(ctx)
	if perr != nil {
		if errors.Is(perr, probe.ErrToolMissing) {
			m.recorder.Record(false, fmt.Sprintf("Reachability probe cannot run, stopping: %v", perr))
			m.logger.Error().Err(perr).Msg("reachability probe tool missing")
			span.RecordError(perr)
			span.SetStatus(codes.Error, "probe tool missing")
			return fmt.Errorf("reachability probe: %w", perr)
		}
		res.Success = false
		if res.Err == nil {
			res.Err = perr
		}
	}

	if m.metrics != nil {
		m.metrics.RecordProbe(ctx, m.prober.Host(), res.AvgLatencyMs, res.LossPercent)
	}

	m.handleConnectivity(ctx, state, res)
	if !state.reachable {
		return nil
	}

	m.recordMeasurements(res)
	m.handlePacketLoss(ctx, res)
	m.handleLatency(ctx, res)
	m.handleDNS(ctx, state)

	if delivered := m.notifier.Flush(ctx); delivered > 0 {
		span.AddEvent("queue flushed", trace.WithAttributes(attribute.Int("delivered", delivered)))
	}

	return nil
}

// failCycle feeds a panicked cycle to the connectivity detector as a failed
// probe. A panic raised while doing so is logged and dropped.
func (m *Monitor) failCycle(ctx context.Context, state *cycleState, cause any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("panic while handling failed cycle")
		}
	}()
	m.handleConnectivity(ctx, state, probe.Result{Err: fmt.Errorf("panic: %v", cause)})
}

func (m *Monitor) handleConnectivity(ctx context.Context, state *cycleState, res probe.Result) {
	now := m.clock.Now()
	state.connectivityObserved = true
	state.reachable = res.Success
	state.result = res

	ev, ok := m.connectivity.Evaluate(res, now)

	if !res.Success && m.debug {
		m.recorder.Record(false, fmt.Sprintf("Missed ping to %s count (%d/%d)",
			m.prober.Host(), m.connectivity.Count(), m.connectivity.Threshold()))
	}
	if !res.Success {
		m.logger.Debug().
			Err(res.Err).
			Int("count", m.connectivity.Count()).
			Msg("reachability probe failed")
	}

	if !ok {
		return
	}
	m.recordTransition(ctx, ConditionConnectivity, ev)

	switch ev.Kind {
	case condition.Entered:
		m.emit(ctx, m.outageDetected(m.prober.Host(), m.connectivity.Count(), ev.Since))
	case condition.Exited:
		m.emit(ctx, m.outageResolved(ev.Since, ev.Duration))
	}
}

func (m *Monitor) recordMeasurements(res probe.Result) {
	if !res.LatencyKnown() {
		m.recorder.Record(false, "Unable to parse fping output to get ping time")
	}
	if !res.LossKnown() {
		m.recorder.Record(false, "Unable to parse fping output to get packet loss")
	}

	if m.debug {
		if res.LatencyKnown() {
			m.recorder.Record(true, fmt.Sprintf("Avg Ping Time: %.2f ms", *res.AvgLatencyMs))
		}
		if res.LossKnown() {
			m.recorder.Record(true, fmt.Sprintf("Packet Loss: %d%%", *res.LossPercent))
		}
	} else if res.LossKnown() && *res.LossPercent > 0 {
		m.recorder.Record(true, fmt.Sprintf("Packet Loss: %d%%", *res.LossPercent))
	}
}

func (m *Monitor) handlePacketLoss(ctx context.Context, res probe.Result) {
	if !res.LossKnown() {
		return
	}
	ev, ok := m.packetLoss.Evaluate(*res.LossPercent, m.clock.Now())
	if !ok {
		return
	}
	m.recordTransition(ctx, ConditionPacketLoss, ev)

	switch ev.Kind {
	case condition.Entered:
		m.emit(ctx, m.packetLossDetected(*res.LossPercent, ev.Since))
	case condition.Exited:
		m.emit(ctx, m.packetLossResolved(ev.Since, ev.Duration))
	}
}

func (m *Monitor) handleLatency(ctx context.Context, res probe.Result) {
	if !res.LatencyKnown() {
		return
	}
	latency := *res.AvgLatencyMs
	ev, ok := m.latency.Evaluate(latency, m.clock.Now())

	if m.debug && latency > m.highLatencyMs {
		m.recorder.Record(false, fmt.Sprintf("High Internet latency of %.2f ms detected count (%d/%d)",
			latency, m.latency.Count(), m.latency.Threshold()))
	}
	if !ok {
		return
	}
	m.recordTransition(ctx, ConditionLatency, ev)

	switch ev.Kind {
	case condition.Entered:
		m.emit(ctx, m.highLatency(latency, ev.Since))
	case condition.Exited:
		m.emit(ctx, m.latencyRecovered(ev.Since, ev.Duration))
	}
}

func (m *Monitor) handleDNS(ctx context.Context, state *cycleState) {
	resolved := m.resolver.Resolve(ctx)
	state.resolved = &resolved

	if m.metrics != nil {
		m.metrics.RecordDNS(ctx, m.dnsHost, resolved)
	}

	ev, ok := m.dns.Evaluate(resolved, m.clock.Now())

	if !resolved && m.debug {
		m.recorder.Record(false, fmt.Sprintf("DNS resolution of %s failed count (%d/%d)",
			m.dnsHost, m.dns.Count(), m.dns.Threshold()))
	}
	if !ok {
		return
	}
	m.recordTransition(ctx, ConditionDNS, ev)

	switch ev.Kind {
	case condition.Entered:
		m.emit(ctx, m.dnsFailure(ev.Since))
	case condition.Exited:
		m.emit(ctx, m.dnsRecovered(ev.Since, ev.Duration))
	}
}

// emit records the alert and hands it to the notifier.
func (m *Monitor) emit(ctx context.Context, msg message) {
	m.recorder.Record(msg.ok, "Alert: "+msg.body)
	m.logger.Info().
		Str("title", msg.title).
		Str("body", msg.body).
		Msg("condition changed")
	m.notifier.Notify(ctx, msg.title, msg.body)
}

func (m *Monitor) recordTransition(ctx context.Context, name string, ev condition.Event) {
	trace.SpanFromContext(ctx).AddEvent("condition "+ev.Kind.String(),
		trace.WithAttributes(attribute.String("condition.name", name)))
	if m.metrics != nil {
		m.metrics.RecordCondition(ctx, name, ev.Kind.String())
	}
}

// finishCycle publishes the cycle outcome to the status file, metrics and
// the values served by the liveness endpoint.
func (m *Monitor) finishCycle(ctx context.Context, state *cycleState, elapsed time.Duration) {
	depth := m.notifier.QueueLen()
	now := m.clock.Now()

	m.lastCycleAt.Store(now.UnixNano())
	m.lastReachable.Store(state.reachable)
	m.queueDepth.Store(int64(depth))
	m.cycles.Add(1)

	if m.metrics != nil {
		m.metrics.RecordCycle(ctx, elapsed, state.reachable)
	}

	if m.statusPath == "" {
		return
	}
	snap := m.snapshot(state, depth)
	if err := status.Write(m.statusPath, snap, now); err != nil {
		m.logger.Warn().Err(err).Str("path", m.statusPath).Msg("failed to write status file")
	}
}

func (m *Monitor) snapshot(state *cycleState, depth int) status.Snapshot {
	snap := status.Snapshot{
		Internet:   status.Signal{State: m.internetState(state)},
		DNS:        status.Signal{State: m.dnsState(state)},
		QueueDepth: depth,
	}
	if state.reachable {
		snap.LatencyMs = state.result.AvgLatencyMs
		snap.LossPercent = state.result.LossPercent
	}
	return snap
}

func (m *Monitor) internetState(state *cycleState) status.State {
	switch {
	case !state.connectivityObserved:
		return status.StateUnknown
	case !state.reachable && m.connectivity.Active():
		return status.StateDown
	case !state.reachable:
		return status.StateWarning
	case m.packetLoss.Active() || m.latency.Active():
		return status.StateWarning
	default:
		return status.StateUp
	}
}

func (m *Monitor) dnsState(state *cycleState) status.State {
	switch {
	case state.resolved == nil:
		return status.StateUnknown
	case m.dns.Active():
		return status.StateDown
	case !*state.resolved:
		return status.StateWarning
	default:
		return status.StateUp
	}
}

// Stats is a point-in-time view of the loop for the liveness endpoint.
type Stats struct {
	StartedAt   time.Time
	LastCycleAt time.Time
	Reachable   bool
	QueueDepth  int
	Cycles      int64
}

// Stats returns the values published after the last completed cycle.
// Safe for concurrent use.
func (m *Monitor) Stats() Stats {
	s := Stats{
		StartedAt:  m.startedAt,
		Reachable:  m.lastReachable.Load(),
		QueueDepth: int(m.queueDepth.Load()),
		Cycles:     m.cycles.Load(),
	}
	if ns := m.lastCycleAt.Load(); ns != 0 {
		s.LastCycleAt = time.Unix(0, ns).UTC()
	}
	return s
}

// Interval returns the cycle period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}
