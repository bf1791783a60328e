// Package status reads and writes the connection status snapshot shared by
// the monitor and the log viewer.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the UTC layout of Snapshot.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05Z"

// State is the health of one signal.
type State string

// Known states.
const (
	StateUp      State = "up"
	StateDown    State = "down"
	StateWarning State = "warning"
	StateUnknown State = "unknown"
)

// Normalize maps any unrecognized value to StateUnknown.
func (s State) Normalize() State {
	switch State(strings.ToLower(string(s))) {
	case StateUp:
		return StateUp
	case StateDown:
		return StateDown
	case StateWarning:
		return StateWarning
	default:
		return StateUnknown
	}
}

// Text returns the label shown for the state.
func (s State) Text() string {
	switch s.Normalize() {
	case StateUp:
		return "Up"
	case StateDown:
		return "Down"
	case StateWarning:
		return "Degraded"
	default:
		return "Unknown"
	}
}

// CSSClass returns the stylesheet class for the state.
func (s State) CSSClass() string {
	return "status-" + string(s.Normalize())
}

// Signal wraps a state the way it is laid out in the snapshot file.
type Signal struct {
	State State `json:"state"`
}

// Snapshot is the status written after every monitoring cycle.
type Snapshot struct {
	Timestamp   string   `json:"timestamp"`
	Internet    Signal   `json:"internet"`
	DNS         Signal   `json:"dns"`
	QueueDepth  int      `json:"queue_depth"`
	LatencyMs   *float64 `json:"latency_ms,omitempty"`
	LossPercent *int     `json:"loss_percent,omitempty"`
}

// Unknown returns a snapshot with both signals unknown.
func Unknown() Snapshot {
	return Snapshot{
		Internet: Signal{State: StateUnknown},
		DNS:      Signal{State: StateUnknown},
	}
}

// Time parses the snapshot timestamp.
func (s Snapshot) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s.Timestamp, time.UTC)
}

// Fresh reports whether the snapshot is at most maxAge old at now. A
// non-positive maxAge disables the check.
func (s Snapshot) Fresh(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	ts, err := s.Time()
	if err != nil {
		return false
	}
	age := now.Sub(ts)
	return age >= 0 && age <= maxAge
}

// Write stores the snapshot at path, stamped with now. The file is replaced
// atomically so readers never observe a partial document.
func Write(path string, snap Snapshot, now time.Time) error {
	snap.Timestamp = now.UTC().Format(TimestampLayout)
	snap.Internet.State = snap.Internet.State.Normalize()
	snap.DNS.State = snap.DNS.State.Normalize()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".connection_status-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Read loads the snapshot at path. Missing, unreadable, malformed or stale
// files all yield Unknown; the error is returned alongside for logging and
// is nil for a missing file.
func Read(path string, now time.Time, maxAge time.Duration) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Unknown(), nil
		}
		return Unknown(), fmt.Errorf("reading status: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Unknown(), fmt.Errorf("decoding status: %w", err)
	}

	if !snap.Fresh(now, maxAge) {
		stale := Unknown()
		stale.Timestamp = snap.Timestamp
		return stale, nil
	}

	snap.Internet.State = snap.Internet.State.Normalize()
	snap.DNS.State = snap.DNS.State.Normalize()
	return snap, nil
}
