// Package handler provides HTTP handlers for the log viewer.
package handler

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/inetmon/inetmon/internal/eventlog"
	"github.com/inetmon/inetmon/internal/status"
	"github.com/inetmon/inetmon/internal/web/middleware"
	"github.com/inetmon/inetmon/internal/web/response"
	"github.com/inetmon/inetmon/internal/web/tail"
)

// MaxLogLines caps the lines parameter of the log API.
const MaxLogLines = 10000

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// ViewerConfig holds configuration for the viewer handler.
type ViewerConfig struct {
	Title      string
	LogPath    string
	StatusPath string

	// LogLines is the number of lines shown on the page and the default
	// for the log API.
	LogLines int

	// RefreshInterval is the page auto-refresh period.
	RefreshInterval time.Duration

	// StatusMaxAge is the status freshness window; zero disables the check.
	StatusMaxAge time.Duration

	// Hub serves live tail websocket clients. Nil disables /ws.
	Hub *tail.Hub

	Clock  clock.Clock
	Logger zerolog.Logger
}

// ViewerHandler serves the log page and its API.
type ViewerHandler struct {
	cfg    ViewerConfig
	clock  clock.Clock
	logger zerolog.Logger
}

// NewViewerHandler creates a ViewerHandler.
func NewViewerHandler(cfg ViewerConfig) *ViewerHandler {
	if cfg.LogLines < 1 {
		cfg.LogLines = 100
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &ViewerHandler{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger.With().Str("component", "viewer").Logger(),
	}
}

type indexData struct {
	Title          string
	Log            string
	LogLines       int
	LogPath        string
	Internet       status.State
	DNS            status.State
	RefreshSeconds int
}

// Index handles GET / - the log page.
func (h *ViewerHandler) Index(w http.ResponseWriter, r *http.Request) {
	lines := h.tail(r, h.cfg.LogLines)
	snap := h.status(r)

	refresh := int(h.cfg.RefreshInterval / time.Second)
	if refresh < 1 {
		refresh = 1
	}

	data := indexData{
		Title:          h.cfg.Title,
		Log:            strings.Join(lines, "\n"),
		LogLines:       h.cfg.LogLines,
		LogPath:        h.cfg.LogPath,
		Internet:       snap.Internet.State,
		DNS:            snap.DNS.State,
		RefreshSeconds: refresh,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("rendering index")
	}
}

// Health handles GET /health - liveness check.
func (h *ViewerHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Text(w, r, http.StatusOK, "ok")
}

// ClearLog handles POST /clear-log - truncates the log and returns to the page.
func (h *ViewerHandler) ClearLog(w http.ResponseWriter, r *http.Request) {
	if err := eventlog.Truncate(h.cfg.LogPath); err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("clearing log")
	} else {
		h.logger.Info().Str("path", h.cfg.LogPath).Msg("log cleared")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// StatusView is the body of GET /api/status.
type StatusView struct {
	status.Snapshot
	InternetText string `json:"internet_text"`
	DNSText      string `json:"dns_text"`
}

// Status handles GET /api/status - the current status snapshot.
func (h *ViewerHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.status(r)
	response.JSON(w, r, http.StatusOK, StatusView{
		Snapshot:     snap,
		InternetText: snap.Internet.State.Text(),
		DNSText:      snap.DNS.State.Text(),
	})
}

// LogView is the body of GET /api/log.
type LogView struct {
	Path  string   `json:"path"`
	Lines []string `json:"lines"`
}

// Log handles GET /api/log?lines=N - the last N log lines.
func (h *ViewerHandler) Log(w http.ResponseWriter, r *http.Request) {
	n := h.cfg.LogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxLogLines {
			response.BadRequest(w, r, "lines must be an integer between 1 and "+strconv.Itoa(MaxLogLines))
			return
		}
		n = v
	}

	lines, err := eventlog.Tail(h.cfg.LogPath, n)
	if err != nil {
		h.logger.Error().Err(err).Msg("reading log")
		response.InternalError(w, r, "the log file could not be read")
		return
	}
	if lines == nil {
		lines = []string{}
	}

	response.JSON(w, r, http.StatusOK, LogView{Path: h.cfg.LogPath, Lines: lines})
}

// Live handles GET /ws - websocket live tail.
func (h *ViewerHandler) Live(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Hub == nil {
		response.NotFound(w, r, "live tail is not enabled")
		return
	}
	h.cfg.Hub.Serve(w, r, h.tail(r, h.cfg.LogLines))
}

func (h *ViewerHandler) tail(r *http.Request, n int) []string {
	lines, err := eventlog.Tail(h.cfg.LogPath, n)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("reading log")
		return nil
	}
	return lines
}

func (h *ViewerHandler) status(r *http.Request) status.Snapshot {
	snap, err := status.Read(h.cfg.StatusPath, h.clock.Now(), h.cfg.StatusMaxAge)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("reading status")
	}
	return snap
}
