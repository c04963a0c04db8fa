package logging

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TraceIDHeader is the canonical HTTP header for propagating trace IDs between services.
const TraceIDHeader = "X-Trace-ID"

// TraceIDField is the canonical structured logging field for trace identifiers.
const TraceIDField = "trace_id"

type contextKey int

const (
	loggerContextKey contextKey = iota
	traceContextKey
)

// ContextWithLogger stores a logger in the provided context.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LoggerFromContext retrieves a logger from context or falls back to the global logger.
func LoggerFromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok && logger != nil {
			return logger
		}
	}
	return L()
}

// TraceIDFromContext extracts a trace identifier from context.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceContextKey).(string)
	return traceID
}

// GenerateTraceID creates a random UUIDv4 trace identifier.
func GenerateTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return id.String()
}

// WithTrace keeps an incoming trace id (or mints one) and returns a context
// carrying both the id and a logger bound to it.
func WithTrace(ctx context.Context, base *Logger, traceID string) (context.Context, *Logger, string) {
	tid := strings.TrimSpace(traceID)
	if tid == "" {
		tid = GenerateTraceID()
	}
	if base == nil {
		base = L()
	}
	derived := base.With(String(TraceIDField, tid))
	ctx = context.WithValue(ctx, traceContextKey, tid)
	return ContextWithLogger(ctx, derived), derived, tid
}

// HTTPTraceMiddleware propagates trace ids through context and headers and
// writes one access line per request once the handler returns.
func HTTPTraceMiddleware(base *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, logger, traceID := WithTrace(r.Context(), base, r.Header.Get(TraceIDHeader))
			w.Header().Set(TraceIDHeader, traceID)
			recorder := &statusRecorder{ResponseWriter: w}
			started := time.Now()
			next.ServeHTTP(recorder, r.WithContext(ctx))

			fields := []Field{
				String("method", r.Method),
				String("path", r.URL.Path),
				Int("status", recorder.Status()),
				Int64("bytes", recorder.bytes),
				Duration("duration", time.Since(started)),
			}
			//1.- Probes and successful calls stay at debug; failures surface by class.
			switch status := recorder.Status(); {
			case status >= http.StatusInternalServerError:
				logger.Error("request served", fields...)
			case status >= http.StatusBadRequest:
				logger.Info("request served", fields...)
			default:
				logger.Debug("request served", fields...)
			}
		})
	}
}

// statusRecorder captures the response status while still allowing the
// WebSocket upgrade to hijack the connection.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

// Status reports the written status, defaulting to 200 when nothing was written.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	conn, rw, err := hijacker.Hijack()
	if err == nil {
		s.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
