// Package tail follows the connection log and fans new lines out to
// websocket clients.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is the fallback re-check period for filesystems that
// do not deliver change events.
const DefaultPollInterval = 5 * time.Second

// FollowerConfig holds configuration for a Follower.
type FollowerConfig struct {
	// Path is the file to follow (required).
	Path string

	// OnLines receives complete lines appended since the last call.
	OnLines func(lines []string)

	// OnReset is called when the file was truncated or removed.
	OnReset func()

	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Follower reads lines appended to a file. It starts at the end of the file
// and survives truncation, removal and re-creation.
type Follower struct {
	path         string
	onLines      func([]string)
	onReset      func()
	pollInterval time.Duration
	logger       zerolog.Logger

	offset  int64
	partial []byte
	ready   chan struct{}
}

// NewFollower creates a Follower.
func NewFollower(cfg FollowerConfig) *Follower {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	onLines := cfg.OnLines
	if onLines == nil {
		onLines = func([]string) {}
	}
	onReset := cfg.OnReset
	if onReset == nil {
		onReset = func() {}
	}

	return &Follower{
		path:         filepath.Clean(cfg.Path),
		onLines:      onLines,
		onReset:      onReset,
		pollInterval: poll,
		logger:       cfg.Logger.With().Str("component", "tail").Str("path", cfg.Path).Logger(),
		ready:        make(chan struct{}),
	}
}

// Ready is closed once the watch is in place and the starting offset is known.
func (f *Follower) Ready() <-chan struct{} {
	return f.ready
}

// Run follows the file until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so removal and re-creation of the file are seen.
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if info, err := os.Stat(f.path); err == nil {
		f.offset = info.Size()
	}
	close(f.ready)

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.check()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn().Err(err).Msg("watcher error")
		case <-ticker.C:
			f.check()
		}
	}
}

// check compares the file size with the read offset and emits what changed.
func (f *Follower) check() {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if f.offset > 0 || len(f.partial) > 0 {
				f.reset()
			}
			return
		}
		f.logger.Warn().Err(err).Msg("stat failed")
		return
	}

	size := info.Size()
	if size < f.offset {
		f.reset()
	}
	if size == f.offset {
		return
	}

	lines, err := f.readFrom(size)
	if err != nil {
		f.logger.Warn().Err(err).Msg("read failed")
		return
	}
	if len(lines) > 0 {
		f.onLines(lines)
	}
}

func (f *Follower) reset() {
	f.offset = 0
	f.partial = nil
	f.onReset()
}

func (f *Follower) readFrom(size int64) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size-f.offset)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	f.offset += int64(n)

	data := append(f.partial, buf[:n]...)
	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(data[:i], "\r")))
		data = data[i+1:]
	}
	f.partial = append([]byte(nil), data...)

	return lines, nil
}
