// Package eventlog implements the append-only connection log shared by the
// monitor and the log viewer.
//
// Each record is a single line of the form
//
//	2025-12-07 12:34:56 (+) message
//
// with a UTC timestamp and a (+) or (-) marker for good and bad news. The
// file is opened, appended and closed for every line so concurrent writers
// in other processes interleave at line granularity.
package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// TimestampLayout is the layout of the timestamp prefix of every line.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	markerOK   = "(+)"
	markerFail = "(-)"
)

// Recorder receives event log records.
type Recorder interface {
	Record(ok bool, message string)
}

// Config holds configuration for a Sink.
type Config struct {
	// Path is the log file path (required).
	Path string

	// Logger receives write failures. Defaults to a stderr logger.
	Logger *zerolog.Logger

	// Clock is used for timestamps. Defaults to the wall clock.
	Clock clock.Clock
}

// Sink appends records to the connection log file.
type Sink struct {
	path   string
	logger zerolog.Logger
	clock  clock.Clock
}

// New creates a new Sink.
func New(cfg Config) *Sink {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Sink{
		path:   cfg.Path,
		logger: logger.With().Str("component", "eventlog").Logger(),
		clock:  clk,
	}
}

// Path returns the log file path.
func (s *Sink) Path() string {
	return s.path
}

// Record appends a single line. Failures are reported to the logger and
// never returned.
func (s *Sink) Record(ok bool, message string) {
	line := FormatLine(s.clock.Now(), ok, message)
	if err := s.append(line); err != nil {
		s.logger.Error().
			Err(err).
			Str("path", s.path).
			Str("line", strings.TrimSuffix(line, "\n")).
			Msg("failed to write event log")
	}
}

func (s *Sink) append(line string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	_, werr := f.WriteString(line)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("writing log line: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("closing log file: %w", cerr)
	}
	return nil
}

// FormatLine renders a record including the trailing newline.
func FormatLine(t time.Time, ok bool, message string) string {
	marker := markerFail
	if ok {
		marker = markerOK
	}
	// Embedded newlines would break the one-record-per-line format.
	message = strings.ReplaceAll(message, "\n", " ")
	return fmt.Sprintf("%s %s %s\n", t.UTC().Format(TimestampLayout), marker, message)
}

// Entry is a parsed log line.
type Entry struct {
	Time    time.Time `json:"time"`
	OK      bool      `json:"ok"`
	Message string    `json:"message"`
	Raw     string    `json:"raw"`
}

// ErrMalformedLine is returned by ParseLine for lines not produced by FormatLine.
var ErrMalformedLine = errors.New("malformed log line")

// ParseLine parses a single log line.
func ParseLine(line string) (Entry, error) {
	line = strings.TrimRight(line, "\r\n")
	entry := Entry{Raw: line}

	if len(line) < len(TimestampLayout)+4 {
		return entry, ErrMalformedLine
	}

	ts, err := time.ParseInLocation(TimestampLayout, line[:len(TimestampLayout)], time.UTC)
	if err != nil {
		return entry, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	rest := line[len(TimestampLayout)+1:]
	switch {
	case strings.HasPrefix(rest, markerOK):
		entry.OK = true
	case strings.HasPrefix(rest, markerFail):
		entry.OK = false
	default:
		return entry, ErrMalformedLine
	}

	entry.Time = ts
	entry.Message = strings.TrimSpace(rest[len(markerOK):])
	return entry, nil
}

// Tail returns the last n lines of the log file. A missing file yields no
// lines and no error. n <= 0 returns every line.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	return tailLines(f, n)
}

func tailLines(r io.Reader, n int) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}

	return lines, nil
}

// Truncate empties the log file, creating it and its directory if missing.
func Truncate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("truncating log file: %w", err)
	}
	return f.Close()
}
