package condition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetmon/inetmon/internal/condition"
)

var base = time.Date(2025, 12, 7, 12, 0, 0, 0, time.UTC)

func at(i int) time.Time {
	return base.Add(time.Duration(i) * time.Minute)
}

func TestTracker_EnteredAtThreshold(t *testing.T) {
	tr := condition.NewTracker("connectivity", 3)

	_, ok := tr.Observe(true, at(0))
	assert.False(t, ok)
	_, ok = tr.Observe(true, at(1))
	assert.False(t, ok)

	ev, ok := tr.Observe(true, at(2))
	require.True(t, ok)
	assert.Equal(t, condition.Entered, ev.Kind)
	assert.Equal(t, at(0), ev.Since)
	assert.True(t, tr.Active())

	// Past the threshold nothing more is emitted.
	for i := 3; i < 10; i++ {
		_, ok = tr.Observe(true, at(i))
		assert.False(t, ok, "observation %d", i)
	}
	assert.Equal(t, 10, tr.Count())

	ev, ok = tr.Observe(false, at(10))
	require.True(t, ok)
	assert.Equal(t, condition.Exited, ev.Kind)
	assert.Equal(t, at(0), ev.Since)
	assert.Equal(t, 10*time.Minute, ev.Duration)
	assert.Equal(t, 0, tr.Count())
}

func TestTracker_ScenarioThree(t *testing.T) {
	tr := condition.NewTracker("connectivity", 3)

	var events []condition.Event
	for i, degraded := range []bool{true, true, true} {
		if ev, ok := tr.Observe(degraded, at(i)); ok {
			events = append(events, ev)
		}
	}
	require.Len(t, events, 1)
	assert.Equal(t, at(0), events[0].Since)

	ev, ok := tr.Observe(false, at(3))
	require.True(t, ok)
	assert.Equal(t, condition.Exited, ev.Kind)
	assert.Equal(t, at(3).Sub(at(0)), ev.Duration)
}

func TestTracker_SubThresholdFlappingIsSilent(t *testing.T) {
	tr := condition.NewTracker("loss", 3)

	pattern := []bool{true, false, true, true, false, true, false, false, true, true, false}
	for i, degraded := range pattern {
		_, ok := tr.Observe(degraded, at(i))
		assert.False(t, ok, "observation %d", i)
	}
}

func TestTracker_EpisodeStartInvariant(t *testing.T) {
	tr := condition.NewTracker("dns", 2)

	_, ok := tr.EpisodeStart()
	assert.False(t, ok)

	tr.Observe(true, at(0))
	start, ok := tr.EpisodeStart()
	require.True(t, ok)
	assert.Equal(t, at(0), start)

	tr.Observe(true, at(1))
	start, ok = tr.EpisodeStart()
	require.True(t, ok)
	assert.Equal(t, at(0), start, "start is fixed at the first degraded observation")

	tr.Observe(false, at(2))
	_, ok = tr.EpisodeStart()
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Count())
}

func TestTracker_OneEnteredPerRun(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		pattern   []bool
		entered   []int
		exited    []int
	}{
		{
			name:      "two runs above threshold",
			threshold: 2,
			pattern:   []bool{true, true, true, false, true, true, false},
			entered:   []int{1, 5},
			exited:    []int{3, 6},
		},
		{
			name:      "run exactly at threshold",
			threshold: 3,
			pattern:   []bool{false, true, true, true, false},
			entered:   []int{3},
			exited:    []int{4},
		},
		{
			name:      "run never recovers",
			threshold: 1,
			pattern:   []bool{true, true, true},
			entered:   []int{0},
			exited:    nil,
		},
		{
			name:      "healthy only",
			threshold: 3,
			pattern:   []bool{false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := condition.NewTracker("test", tt.threshold)

			var entered, exited []int
			for i, degraded := range tt.pattern {
				ev, ok := tr.Observe(degraded, at(i))
				if !ok {
					continue
				}
				switch ev.Kind {
				case condition.Entered:
					entered = append(entered, i)
				case condition.Exited:
					exited = append(exited, i)
				}
			}

			assert.Equal(t, tt.entered, entered)
			assert.Equal(t, tt.exited, exited)
		})
	}
}

func TestNewTracker_NormalizesThreshold(t *testing.T) {
	tr := condition.NewTracker("test", 0)
	assert.Equal(t, 1, tr.Threshold())

	ev, ok := tr.Observe(true, at(0))
	require.True(t, ok)
	assert.Equal(t, condition.Entered, ev.Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "entered", condition.Entered.String())
	assert.Equal(t, "exited", condition.Exited.String())
	assert.Equal(t, "unknown", condition.Kind(0).String())
}
