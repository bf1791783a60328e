package status_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetmon/inetmon/internal/status"
)

var now = time.Date(2025, 12, 7, 12, 34, 56, 0, time.UTC)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "connection_status.json")
	latency := 21.5
	loss := 0

	err := status.Write(path, status.Snapshot{
		Internet:    status.Signal{State: status.StateUp},
		DNS:         status.Signal{State: status.StateWarning},
		QueueDepth:  2,
		LatencyMs:   &latency,
		LossPercent: &loss,
	}, now)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2025-12-07T12:34:56Z"`)
	assert.Contains(t, string(data), `"internet":{"state":"up"}`)

	snap, err := status.Read(path, now.Add(time.Minute), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, status.StateUp, snap.Internet.State)
	assert.Equal(t, status.StateWarning, snap.DNS.State)
	assert.Equal(t, 2, snap.QueueDepth)
	require.NotNil(t, snap.LatencyMs)
	assert.InDelta(t, 21.5, *snap.LatencyMs, 0.001)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestRead_Unknown(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		create  bool
		wantErr bool
	}{
		{name: "missing file"},
		{name: "malformed", content: "{not json", create: true, wantErr: true},
		{name: "stale", content: `{"timestamp":"2025-12-07T10:00:00Z","internet":{"state":"up"},"dns":{"state":"up"}}`, create: true},
		{name: "bad timestamp", content: `{"timestamp":"yesterday","internet":{"state":"up"}}`, create: true},
		{name: "future timestamp", content: `{"timestamp":"2025-12-07T13:00:00Z","internet":{"state":"up"}}`, create: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if tt.create {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}

			snap, err := status.Read(path, now, 5*time.Minute)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, status.StateUnknown, snap.Internet.State)
			assert.Equal(t, status.StateUnknown, snap.DNS.State)
		})
	}
}

func TestRead_AgeCheckDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, status.Write(path, status.Snapshot{
		Internet: status.Signal{State: status.StateDown},
		DNS:      status.Signal{State: "bogus"},
	}, now.Add(-24*time.Hour)))

	snap, err := status.Read(path, now, 0)
	require.NoError(t, err)
	assert.Equal(t, status.StateDown, snap.Internet.State)
	assert.Equal(t, status.StateUnknown, snap.DNS.State)
}

func TestState_Display(t *testing.T) {
	tests := []struct {
		state    status.State
		text     string
		cssClass string
	}{
		{status.StateUp, "Up", "status-up"},
		{status.StateDown, "Down", "status-down"},
		{status.StateWarning, "Degraded", "status-warning"},
		{"UP", "Up", "status-up"},
		{"", "Unknown", "status-unknown"},
		{"sideways", "Unknown", "status-unknown"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.text, tt.state.Text())
			assert.Equal(t, tt.cssClass, tt.state.CSSClass())
		})
	}
}
