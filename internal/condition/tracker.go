// Package condition provides debounced edge detection for health signals.
//
// A Tracker turns a per-cycle degraded/healthy observation into discrete
// Entered and Exited events. An episode is only reported once the degraded
// signal has held for Threshold consecutive observations; the first healthy
// observation ends it.
package condition

import (
	"time"
)

// Kind identifies a transition emitted by a Tracker.
type Kind int

const (
	// Entered is emitted when the consecutive degraded count reaches the threshold.
	Entered Kind = iota + 1

	// Exited is emitted on the first healthy observation after an Entered episode.
	Exited
)

// String returns the transition name.
func (k Kind) String() string {
	switch k {
	case Entered:
		return "entered"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event describes a degraded episode transition.
type Event struct {
	Kind Kind

	// Since is the timestamp of the first degraded observation of the episode.
	Since time.Time

	// Duration is set for Exited events only.
	Duration time.Duration
}

// Tracker is a debounced edge detector for a single condition.
// It is not safe for concurrent use.
type Tracker struct {
	name      string
	threshold int

	count        int
	episodeStart time.Time
	hasStart     bool
}

// NewTracker creates a tracker reporting after threshold consecutive
// degraded observations. Thresholds below 1 are treated as 1.
func NewTracker(name string, threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		name:      name,
		threshold: threshold,
	}
}

// Observe records one observation and returns the resulting transition, if any.
func (t *Tracker) Observe(degraded bool, now time.Time) (Event, bool) {
	if degraded {
		if t.count == 0 {
			t.episodeStart = now
			t.hasStart = true
		}
		t.count++

		if t.count == t.threshold {
			return Event{Kind: Entered, Since: t.episodeStart}, true
		}
		return Event{}, false
	}

	var (
		ev   Event
		emit bool
	)
	if t.count >= t.threshold {
		ev = Event{
			Kind:     Exited,
			Since:    t.episodeStart,
			Duration: now.Sub(t.episodeStart),
		}
		emit = true
	}

	t.count = 0
	t.episodeStart = time.Time{}
	t.hasStart = false

	return ev, emit
}

// Name returns the tracker name.
func (t *Tracker) Name() string {
	return t.name
}

// Threshold returns the number of consecutive degraded observations
// required before an episode is reported.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Count returns the current consecutive degraded count.
func (t *Tracker) Count() int {
	return t.count
}

// EpisodeStart returns the start of the current run of degraded
// observations. ok is false when the count is zero.
func (t *Tracker) EpisodeStart() (start time.Time, ok bool) {
	return t.episodeStart, t.hasStart
}

// Active reports whether an Entered event has been emitted for the current episode.
func (t *Tracker) Active() bool {
	return t.count >= t.threshold
}
