package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger builds the process logger. format "console" (or "text") writes
// human readable lines; anything else writes JSON. Unknown levels fall back to
// info.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(logWriter(format, os.Stdout)).Level(lvl).With().Timestamp().Logger()
}

func logWriter(format string, out io.Writer) io.Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	default:
		return out
	}
}

// RequestLogger writes one access log line per request and hands a request
// scoped logger to the handlers through zerolog.Ctx. Server errors log at
// error level, client errors at warn, and requests under a Quiet prefix (health
// checks, metric scrapes) at debug.
type RequestLogger struct {
	Logger zerolog.Logger
	Quiet  []string
}

func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped := l.Logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		r = r.WithContext(scoped.WithContext(r.Context()))
		rec := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		// read through the context: the auth middleware adds customer_id there
		logger := zerolog.Ctx(r.Context())
		evt := l.event(logger, r.URL.Path, rec.Status())
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		evt.Str("method", r.Method).
			Str("route", Route(r)).
			Str("path", r.URL.Path).
			Int("status", rec.Status()).
			Dur("duration_ms", time.Since(start)).
			Int64("bytes", rec.BytesWritten()).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("http_request")
	})
}

func (l RequestLogger) event(logger *zerolog.Logger, path string, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status >= http.StatusBadRequest:
		return logger.Warn()
	}
	for _, prefix := range l.Quiet {
		if strings.HasPrefix(path, prefix) {
			return logger.Debug()
		}
	}
	return logger.Info()
}
