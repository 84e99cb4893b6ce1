// Package logging configures slog for the application and the TTS request log.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"salsatempo/pkg/config"
)

var (
	ttsMu     sync.RWMutex
	ttsLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Init rotates the previous run's logs, installs the default logger (file
// plus console) and opens the TTS request log. The returned func closes the files.
func Init(cfg *config.LogConfig) (func(), error) {
	rotate(cfg.Server.Path, cfg.TTS.Path)
	SetTrace(cfg.Trace)

	var files []*os.File
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
	}

	server, f, err := newHandler(cfg.Server, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	files = append(files, f)
	slog.SetDefault(slog.New(server))

	if cfg.TTS.Path != "" {
		h, f, err := newHandler(cfg.TTS, nil)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to setup tts logger: %w", err)
		}
		files = append(files, f)
		ttsMu.Lock()
		ttsLogger = slog.New(h)
		ttsMu.Unlock()
	}

	return cleanup, nil
}

// TTS returns the logger for synthesis requests. It discards until Init
// opens the file.
func TTS() *slog.Logger {
	ttsMu.RLock()
	defer ttsMu.RUnlock()
	return ttsLogger
}

// ParseLevel maps a level name such as "debug" or "WARN+2" to a slog level,
// defaulting to INFO.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// newHandler opens s.Path for append. With a console writer, records at
// WARN and above are also printed there so the metronome stays readable.
func newHandler(s config.LogSettings, console io.Writer) (slog.Handler, *os.File, error) {
	if s.Path == "" {
		return nil, nil, errors.New("log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	level := ParseLevel(s.Level)
	file := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug})
	if console == nil {
		return file, f, nil
	}
	term := slog.NewTextHandler(console, &slog.HandlerOptions{Level: max(level, slog.LevelWarn)})
	return fanout{file, term}, f, nil
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (h fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, c := range h {
		if c.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (h fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, c := range h {
		if c.Enabled(ctx, r.Level) {
			errs = append(errs, c.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(h))
	for i, c := range h {
		out[i] = c.WithAttrs(attrs)
	}
	return out
}

func (h fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(h))
	for i, c := range h {
		out[i] = c.WithGroup(name)
	}
	return out
}

// rotate keeps exactly one previous run of each log as <path>.old.
func rotate(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		old := p + ".old"
		_ = os.Remove(old)
		_ = os.Rename(p, old)
	}
}
