// Package notify delivers state-change notifications, queueing them in
// memory when delivery fails and draining the queue on request.
//
// Delivery is strictly ordered: Flush stops at the first failure and keeps
// the failed notification and everything behind it for the next attempt.
package notify

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inetmon/inetmon/internal/eventlog"
)

// Transport sends a single notification. Any error means delivery failed.
type Transport interface {
	Send(ctx context.Context, title, body string) error
}

// Metrics receives delivery outcomes. All methods must be cheap.
type Metrics interface {
	RecordDelivery(ctx context.Context, outcome string)
	RecordQueueDepth(ctx context.Context, depth int)
}

// Delivery outcomes reported to Metrics.
const (
	OutcomeSent     = "sent"
	OutcomeQueued   = "queued"
	OutcomeFlushed  = "flushed"
	OutcomeFailed   = "failed"
	OutcomeDisabled = "disabled"
)

// Config holds configuration for a Notifier.
type Config struct {
	// Transport delivers notifications. A nil Transport disables delivery:
	// messages are recorded to the event log and dropped.
	Transport Transport

	// Recorder receives one event log line per delivery attempt, enqueue
	// and flush outcome (required).
	Recorder eventlog.Recorder

	// Debug also records successful deliveries of fresh notifications in
	// full, not only their titles.
	Debug bool

	Clock   clock.Clock
	Metrics Metrics
	Logger  zerolog.Logger
}

// Notifier sends notifications and owns the retry queue.
// It is driven from a single goroutine and is not safe for concurrent use.
type Notifier struct {
	transport      Transport
	enabled        bool
	queue          Queue
	warnedDisabled bool

	recorder eventlog.Recorder
	debug    bool
	clock    clock.Clock
	metrics  Metrics
	logger   zerolog.Logger
}

// New creates a Notifier. Whether delivery is enabled is fixed here.
func New(cfg Config) *Notifier {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Notifier{
		transport: cfg.Transport,
		enabled:   cfg.Transport != nil,
		recorder:  cfg.Recorder,
		debug:     cfg.Debug,
		clock:     clk,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "notifier").Logger(),
	}
}

// Enabled reports whether a transport is configured.
func (n *Notifier) Enabled() bool {
	return n.enabled
}

// Notify attempts immediate delivery and queues the notification on failure.
// Pending notifications are flushed first; if any remain, the new one is
// queued behind them without a send attempt so delivery order is kept.
func (n *Notifier) Notify(ctx context.Context, title, body string) {
	if !n.enabled {
		if !n.warnedDisabled {
			n.recorder.Record(false, "Notifications disabled: no Pushover credentials configured, alerts are logged only")
			n.logger.Warn().Msg("notifications disabled, no credentials configured")
			n.warnedDisabled = true
		}
		n.recorder.Record(true, fmt.Sprintf("Notification (not sent): %s: %s", title, body))
		n.recordDelivery(ctx, OutcomeDisabled)
		return
	}

	if n.queue.Len() > 0 {
		n.Flush(ctx)
		if n.queue.Len() > 0 {
			n.enqueueBehind(ctx, title, body)
			return
		}
	}

	err := n.transport.Send(ctx, title, body)
	if err == nil {
		if n.debug {
			n.recorder.Record(true, fmt.Sprintf("Notification sent: %s: %s", title, body))
		} else {
			n.recorder.Record(true, fmt.Sprintf("Notification sent: %s", title))
		}
		n.logger.Info().Str("title", title).Msg("notification sent")
		n.recordDelivery(ctx, OutcomeSent)
		return
	}

	item := Notification{
		ID:       uuid.NewString(),
		Title:    title,
		Body:     body,
		QueuedAt: n.clock.Now(),
		Attempts: 1,
	}
	n.queue.Push(item)

	n.recorder.Record(false, fmt.Sprintf("Failed to send notification %q, queued for retry (%d pending): %v",
		title, n.queue.Len(), err))
	n.logger.Warn().
		Err(err).
		Str("title", title).
		Str("notification_id", item.ID).
		Int("queue_depth", n.queue.Len()).
		Msg("notification delivery failed, queued")
	n.recordDelivery(ctx, OutcomeQueued)
	n.recordDepth(ctx)
}

func (n *Notifier) enqueueBehind(ctx context.Context, title, body string) {
	item := Notification{
		ID:       uuid.NewString(),
		Title:    title,
		Body:     body,
		QueuedAt: n.clock.Now(),
	}
	n.queue.Push(item)

	n.recorder.Record(false, fmt.Sprintf("Notification %q queued behind %d pending notification(s)",
		title, n.queue.Len()-1))
	n.logger.Warn().
		Str("title", title).
		Str("notification_id", item.ID).
		Int("queue_depth", n.queue.Len()).
		Msg("notification queued behind undelivered ones")
	n.recordDelivery(ctx, OutcomeQueued)
	n.recordDepth(ctx)
}

// Flush delivers queued notifications from the head. It stops at the first
// failure, leaving that notification and all later ones queued in their
// original order, and returns the number delivered.
func (n *Notifier) Flush(ctx context.Context) int {
	if n.queue.Len() == 0 {
		return 0
	}

	pending := n.queue.Len()
	n.recorder.Record(true, fmt.Sprintf("Flushing %d queued notification(s)", pending))

	delivered := 0
	for {
		item, ok := n.queue.Peek()
		if !ok {
			break
		}

		if err := n.transport.Send(ctx, item.Title, queuedBody(item)); err != nil {
			n.queue.markFailed()
			n.recorder.Record(false, fmt.Sprintf("Resend of %q failed, %d notification(s) remain queued: %v",
				item.Title, n.queue.Len(), err))
			n.logger.Warn().
				Err(err).
				Str("notification_id", item.ID).
				Int("delivered", delivered).
				Int("queue_depth", n.queue.Len()).
				Msg("flush stopped at first failure")
			n.recordDelivery(ctx, OutcomeFailed)
			break
		}

		n.queue.Pop()
		delivered++
		n.recorder.Record(true, fmt.Sprintf("Queued notification sent: %s", item.Title))
		n.recordDelivery(ctx, OutcomeFlushed)
	}

	if delivered > 0 {
		n.logger.Info().
			Int("delivered", delivered).
			Int("queue_depth", n.queue.Len()).
			Msg("queued notifications flushed")
	}
	n.recordDepth(ctx)

	return delivered
}

// QueueLen returns the number of undelivered notifications.
func (n *Notifier) QueueLen() int {
	return n.queue.Len()
}

// Pending returns a copy of the queued notifications, oldest first.
func (n *Notifier) Pending() []Notification {
	return n.queue.Items()
}

// queuedBody marks late deliveries with the time the notification was queued.
func queuedBody(item Notification) string {
	return fmt.Sprintf("%s\n\n(delayed, queued at %s UTC)", item.Body, item.QueuedAt.UTC().Format(eventlog.TimestampLayout))
}

func (n *Notifier) recordDelivery(ctx context.Context, outcome string) {
	if n.metrics != nil {
		n.metrics.RecordDelivery(ctx, outcome)
	}
}

func (n *Notifier) recordDepth(ctx context.Context) {
	if n.metrics != nil {
		n.metrics.RecordQueueDepth(ctx, n.queue.Len())
	}
}
