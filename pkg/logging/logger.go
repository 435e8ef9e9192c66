// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog handler stack shared by the Sentinel
// binaries.
//
// The CLI wants its service logs out of the way of styled terminal
// output, so it logs text to stderr plus a JSON file under
// ~/.sentinel/logs. The daemon wants JSON on stderr for container log
// collection. Both get the same stack from New:
//
//	log := logging.New(logging.Config{
//	    Level:   logging.LevelWarn,
//	    LogDir:  "~/.sentinel/logs",
//	    Service: "cli",
//	})
//	defer log.Close()
//	logger := log.Slog()
//
// An optional LogExporter receives every accepted record as a
// LogEntry, the seam deployments use to forward logs to external
// collectors. Export rides the handler chain, so records logged
// through the raw *slog.Logger are exported too.
//
// This package does not redact anything. Callers must keep tokens and
// PII out of attribute values.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is the minimum severity a record needs to be written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN" or "ERROR".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// Config selects the destinations New wires up. The zero value logs
// Info and above as text on stderr.
type Config struct {
	// Level is the minimum severity for every destination.
	Level Level

	// LogDir, when set, adds a JSON file handler writing
	// {Service}_{YYYY-MM-DD}.log under the directory. A leading ~ is
	// expanded to the home directory; the directory is created if
	// missing. File logs are always JSON regardless of the JSON flag.
	LogDir string

	// Service is stamped on every record as the "service" attribute
	// and names the log file. Empty means no attribute and the file
	// falls back to "sentinel".
	Service string

	// JSON switches the stderr handler from text to JSON. The daemon
	// sets this; the CLI leaves it off.
	JSON bool

	// Exporter, when set, receives every accepted record. Close
	// flushes and closes it.
	Exporter LogExporter
}

// LogExporter forwards log records to an external collector. Export is
// called inline on the logging goroutine and must not block; buffer
// internally and drain in Flush. Flush then Close are called from
// Logger.Close during shutdown.
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// LogEntry is the exporter-facing view of one log record.
type LogEntry struct {
	Time    time.Time
	Level   Level
	Service string
	Message string
	Attrs   map[string]any
}

// Logger owns the handler stack and the resources behind it: the log
// file handle and the exporter. Safe for concurrent use; Close exactly
// once when done.
type Logger struct {
	slog     *slog.Logger
	file     *os.File
	exporter LogExporter

	closeOnce sync.Once
	closeErr  error
}

// New builds a Logger from cfg. Failures to open the log directory or
// file degrade silently to the remaining destinations; logging must
// never take the process down.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var stderr slog.Handler
	if cfg.JSON {
		stderr = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderr = slog.NewTextHandler(os.Stderr, opts)
	}
	handlers := []slog.Handler{stderr}

	l := &Logger{exporter: cfg.Exporter}

	if cfg.LogDir != "" {
		if file := openLogFile(cfg.LogDir, cfg.Service); file != nil {
			l.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}
	if cfg.Exporter != nil {
		handlers = append(handlers, &exportHandler{
			exporter: cfg.Exporter,
			service:  cfg.Service,
			min:      cfg.Level.slogLevel(),
		})
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}
	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.slog = slog.New(handler)
	return l
}

// Slog returns the structured logger backed by the full handler stack.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, then syncs and closes the log file.
// Idempotent; returns the first error encountered.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		var errs []error
		if l.exporter != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.exporter.Flush(ctx); err != nil {
				errs = append(errs, fmt.Errorf("flush exporter: %w", err))
			}
			if err := l.exporter.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close exporter: %w", err))
			}
		}
		if l.file != nil {
			if err := l.file.Sync(); err != nil {
				errs = append(errs, fmt.Errorf("sync log file: %w", err))
			}
			if err := l.file.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close log file: %w", err))
			}
		}
		if len(errs) > 0 {
			l.closeErr = errs[0]
		}
	})
	return l.closeErr
}

// openLogFile opens {service}_{date}.log under dir for append, or nil
// when the directory or file cannot be created.
func openLogFile(dir, service string) *os.File {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "sentinel"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// multiHandler fans one record out to every destination, so stderr,
// file and exporter can disagree on format.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// exportHandler adapts a LogExporter into the slog handler chain.
// Export errors are dropped; a broken collector must not break
// logging.
type exportHandler struct {
	exporter LogExporter
	service  string
	min      slog.Level
	attrs    []slog.Attr
}

func (h *exportHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *exportHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	entry := LogEntry{
		Time:    r.Time,
		Level:   levelFromSlog(r.Level),
		Service: h.service,
		Message: r.Message,
		Attrs:   attrs,
	}
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = h.exporter.Export(exportCtx, entry)
	return nil
}

func (h *exportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &exportHandler{exporter: h.exporter, service: h.service, min: h.min, attrs: merged}
}

func (h *exportHandler) WithGroup(string) slog.Handler {
	// Sentinel logs flat key=value pairs; groups are not used.
	return h
}
