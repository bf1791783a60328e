// Package probe implements the reachability and DNS health checks sampled
// once per monitoring cycle.
package probe

import (
	"errors"
	"fmt"
)

// ErrToolMissing reports that the probe executable cannot be run at all.
// It is an environment problem rather than a failed sample, and callers
// treat it as fatal.
var ErrToolMissing = errors.New("probe tool missing")

// ToolError carries the name of the missing executable.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrToolMissing, e.Tool, e.Err)
}

// Is matches ErrToolMissing.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolMissing
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a single reachability probe.
type Result struct {
	// Success is true when the target answered.
	Success bool

	// AvgLatencyMs is the average round-trip time, nil when unknown.
	AvgLatencyMs *float64

	// LossPercent is the packet loss percentage (0..100), nil when unknown.
	LossPercent *int

	// Diagnostic is the raw tool output.
	Diagnostic string

	// Err describes why the probe failed, if it did.
	Err error
}

// LatencyKnown reports whether an average latency was measured.
func (r Result) LatencyKnown() bool {
	return r.AvgLatencyMs != nil
}

// LossKnown reports whether a loss percentage was measured.
func (r Result) LossKnown() bool {
	return r.LossPercent != nil
}
