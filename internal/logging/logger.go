// Package logging emits JSON structured logs for the arbiter service and carries
// per-request loggers and trace identifiers through context.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"autobattler/arbiter/internal/config"
)

// serviceName is stamped on every line written by a configured logger.
const serviceName = "arbiter"

var (
	globalMu     sync.RWMutex
	globalLogger = newNopLogger()
)

// Level represents log verbosity ordering.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "info"
	}
	return levelNames[l]
}

// ParseLevel maps a configured level name onto a Level. Empty means info.
func ParseLevel(raw string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "":
		return InfoLevel, nil
	case "warning":
		return WarnLevel, nil
	}
	for i, candidate := range levelNames {
		if candidate == name {
			return Level(i), nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", raw)
}

// Logger writes one JSON object per line. Keys keep a fixed order: timestamp,
// level, message, then bound fields, then call fields.
type Logger struct {
	mu     *sync.Mutex
	level  Level
	writer syncWriter
	now    func() time.Time
	fields []Field
}

// syncWriter describes a writer that can flush to durable storage.
type syncWriter interface {
	io.Writer
	Sync() error
}

// fanout mirrors each line to every writer and syncs all of them.
type fanout []syncWriter

func (f fanout) Write(p []byte) (int, error) {
	for _, w := range f {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (f fanout) Sync() error {
	var firstErr error
	for _, w := range f {
		if err := w.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New constructs a JSON logger that mirrors to stdout and, when a path is
// configured, to a size-rotated file. The result also becomes the global logger.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var writers fanout
	if strings.TrimSpace(cfg.Path) != "" {
		rotating, err := newRotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		writers = append(writers, rotating)
	}
	writers = append(writers, os.Stdout)
	logger := newLogger(level, writers)
	ReplaceGlobals(logger)
	return logger, nil
}

// NewWithWriter builds a logger over an arbitrary writer without touching the globals.
func NewWithWriter(w io.Writer, level string) (*Logger, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return newLogger(parsed, nopSync{Writer: w}), nil
}

// NewTestLogger returns a logger that discards output, suitable for tests.
func NewTestLogger() *Logger {
	return newNopLogger()
}

func newLogger(level Level, writer syncWriter) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		writer: writer,
		now:    time.Now,
		fields: []Field{String("service", serviceName)},
	}
}

func newNopLogger() *Logger {
	return &Logger{mu: &sync.Mutex{}, level: DebugLevel, writer: nopSync{Writer: io.Discard}, now: time.Now}
}

// ReplaceGlobals swaps the fallback logger used when no context logger is present.
func ReplaceGlobals(logger *Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L returns the current global logger.
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// With returns a child logger that binds fields to every line. Rebinding a key
// replaces its value in place.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return L().With(fields...)
	}
	child := *l
	child.fields = merge(l.fields, fields)
	return &child
}

// Enabled reports whether a line at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return L().Enabled(level)
	}
	return level >= l.level
}

// Sync flushes buffered output to durable storage.
func (l *Logger) Sync() error {
	if l == nil || l.writer == nil {
		return nil
	}
	return l.writer.Sync()
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields ...Field) { l.log(DebugLevel, message, fields) }

// Info logs an informational message.
func (l *Logger) Info(message string, fields ...Field) { l.log(InfoLevel, message, fields) }

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields ...Field) { l.log(WarnLevel, message, fields) }

// Error logs an error message.
func (l *Logger) Error(message string, fields ...Field) { l.log(ErrorLevel, message, fields) }

// Fatal logs a fatal message and exits the process.
func (l *Logger) Fatal(message string, fields ...Field) { l.log(FatalLevel, message, fields) }

func (l *Logger) log(level Level, message string, fields []Field) {
	if l == nil {
		L().log(level, message, fields)
		return
	}
	if level < l.level {
		return
	}
	line := encodeLine(l.now().UTC(), level, message, merge(l.fields, fields))
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.writer.Write(line)
	if level == FatalLevel {
		_ = l.writer.Sync()
		os.Exit(1)
	}
}

// merge appends extra onto base, replacing values whose key is already bound.
func merge(base, extra []Field) []Field {
	out := make([]Field, len(base), len(base)+len(extra))
	copy(out, base)
next:
	for _, field := range extra {
		for i := range out {
			if out[i].Key == field.Key {
				out[i].Value = field.Value
				continue next
			}
		}
		out = append(out, field)
	}
	return out
}

func encodeLine(at time.Time, level Level, message string, fields []Field) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":"`)
	buf.WriteString(at.Format(time.RFC3339Nano))
	buf.WriteString(`","level":"`)
	buf.WriteString(level.String())
	buf.WriteString(`","message":`)
	writeValue(&buf, message)
	for _, field := range fields {
		switch field.Key {
		case "timestamp", "level", "message":
			continue
		}
		buf.WriteByte(',')
		writeValue(&buf, field.Key)
		buf.WriteByte(':')
		writeValue(&buf, field.Value)
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		//1.- Unencodable values degrade to their fmt rendering rather than dropping the line.
		encoded, _ = json.Marshal(fmt.Sprint(value))
	}
	buf.Write(encoded)
}

type nopSync struct{ io.Writer }

func (nopSync) Sync() error { return nil }
