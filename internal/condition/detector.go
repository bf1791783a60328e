package condition

import "time"

// Predicate reports whether a sample represents a degraded condition.
type Predicate[T any] func(sample T) bool

// Detector pairs a Tracker with the predicate deciding degradation for a sample type.
type Detector[T any] struct {
	*Tracker
	degraded Predicate[T]
}

// NewDetector creates a detector for samples of type T.
func NewDetector[T any](name string, threshold int, degraded Predicate[T]) *Detector[T] {
	return &Detector[T]{
		Tracker:  NewTracker(name, threshold),
		degraded: degraded,
	}
}

// Evaluate applies the predicate to the sample and feeds the result to the tracker.
func (d *Detector[T]) Evaluate(sample T, now time.Time) (Event, bool) {
	return d.Observe(d.degraded(sample), now)
}
