package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetmon/inetmon/internal/status"
	"github.com/inetmon/inetmon/internal/web/handler"
)

var now = time.Date(2025, 12, 7, 12, 0, 0, 0, time.UTC)

type fixture struct {
	logPath    string
	statusPath string
	clock      *clock.Mock
	handler    *handler.ViewerHandler
}

func newFixture(t *testing.T, logLines int) *fixture {
	t.Helper()
	dir := t.TempDir()

	mock := clock.NewMock()
	mock.Set(now)

	f := &fixture{
		logPath:    filepath.Join(dir, "connection.log"),
		statusPath: filepath.Join(dir, "connection_status.json"),
		clock:      mock,
	}
	f.handler = handler.NewViewerHandler(handler.ViewerConfig{
		Title:           "Test Monitor",
		LogPath:         f.logPath,
		StatusPath:      f.statusPath,
		LogLines:        logLines,
		RefreshInterval: 30 * time.Second,
		StatusMaxAge:    5 * time.Minute,
		Clock:           mock,
		Logger:          zerolog.New(io.Discard),
	})
	return f
}

func (f *fixture) writeLog(t *testing.T, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.logPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func (f *fixture) writeStatus(t *testing.T, internet, dns status.State, at time.Time) {
	t.Helper()
	snap := status.Snapshot{
		Internet: status.Signal{State: internet},
		DNS:      status.Signal{State: dns},
	}
	require.NoError(t, status.Write(f.statusPath, snap, at))
}

func TestIndex_RendersTailAndStatus(t *testing.T) {
	f := newFixture(t, 2)
	f.writeLog(t,
		"2025-12-07 11:58:00 + first",
		"2025-12-07 11:59:00 - second",
		"2025-12-07 12:00:00 + third",
	)
	f.writeStatus(t, status.StateUp, status.StateWarning, now.Add(-time.Minute))

	rec := httptest.NewRecorder()
	f.handler.Index(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "<title>Test Monitor</title>")
	assert.NotContains(t, body, "first")
	assert.Contains(t, body, "second")
	assert.Contains(t, body, "third")
	assert.Contains(t, body, `class="indicator status-up">Up<`)
	assert.Contains(t, body, `class="indicator status-warning">Degraded<`)
	assert.Contains(t, body, `content="30"`)
}

func TestIndex_StaleStatusIsUnknown(t *testing.T) {
	f := newFixture(t, 10)
	f.writeStatus(t, status.StateDown, status.StateDown, now.Add(-10*time.Minute))

	rec := httptest.NewRecorder()
	f.handler.Index(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "status-down")
	assert.Contains(t, rec.Body.String(), `class="indicator status-unknown">Unknown<`)
}

func TestIndex_EscapesLogContent(t *testing.T) {
	f := newFixture(t, 10)
	f.writeLog(t, "2025-12-07 12:00:00 - <script>alert(1)</script>")

	rec := httptest.NewRecorder()
	f.handler.Index(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 10)

	rec := httptest.NewRecorder()
	f.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestClearLog_TruncatesAndRedirects(t *testing.T) {
	f := newFixture(t, 10)
	f.writeLog(t, "2025-12-07 12:00:00 + line")

	rec := httptest.NewRecorder()
	f.handler.ClearLog(rec, httptest.NewRequest(http.MethodPost, "/clear-log", http.NoBody))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	data, err := os.ReadFile(f.logPath)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestClearLog_CreatesMissingFile(t *testing.T) {
	f := newFixture(t, 10)

	rec := httptest.NewRecorder()
	f.handler.ClearLog(rec, httptest.NewRequest(http.MethodPost, "/clear-log", http.NoBody))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.FileExists(t, f.logPath)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, 10)
	f.writeStatus(t, status.StateDown, status.StateUnknown, now)

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2025-12-07T12:00:00Z", got["timestamp"])
	assert.Equal(t, map[string]interface{}{"state": "down"}, got["internet"])
	assert.Equal(t, "Down", got["internet_text"])
	assert.Equal(t, "Unknown", got["dns_text"])
}

func TestStatus_MissingFile(t *testing.T) {
	f := newFixture(t, 10)

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody))

	var got handler.StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, status.StateUnknown, got.Internet.State)
	assert.Equal(t, status.StateUnknown, got.DNS.State)
}

func TestLog(t *testing.T) {
	f := newFixture(t, 2)
	f.writeLog(t, "a", "b", "c", "d")

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLines []string
	}{
		{name: "default count", query: "", wantCode: http.StatusOK, wantLines: []string{"c", "d"}},
		{name: "explicit count", query: "?lines=3", wantCode: http.StatusOK, wantLines: []string{"b", "c", "d"}},
		{name: "more than available", query: "?lines=50", wantCode: http.StatusOK, wantLines: []string{"a", "b", "c", "d"}},
		{name: "not a number", query: "?lines=abc", wantCode: http.StatusBadRequest},
		{name: "zero", query: "?lines=0", wantCode: http.StatusBadRequest},
		{name: "too many", query: "?lines=10001", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.handler.Log(rec, httptest.NewRequest(http.MethodGet, "/api/log"+tt.query, http.NoBody))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				return
			}

			var got handler.LogView
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantLines, got.Lines)
			assert.Equal(t, f.logPath, got.Path)
		})
	}
}

func TestLog_MissingFileIsEmpty(t *testing.T) {
	f := newFixture(t, 10)

	rec := httptest.NewRecorder()
	f.handler.Log(rec, httptest.NewRequest(http.MethodGet, "/api/log", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"path":"`+f.logPath+`","lines":[]}`, rec.Body.String())
}

func TestLive_DisabledWithoutHub(t *testing.T) {
	f := newFixture(t, 10)

	rec := httptest.NewRecorder()
	f.handler.Live(rec, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
