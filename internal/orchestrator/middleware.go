package orchestrator

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logged assigns a request id, attaches a request-scoped zerolog logger to
// the context and writes one access line per request.
func Logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		lg := log.With().Str("request_id", id).Logger()
		r = r.WithContext(lg.WithContext(r.Context()))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		lvl := zerolog.InfoLevel
		if rec.status >= 500 {
			lvl = zerolog.ErrorLevel
		} else if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			lvl = zerolog.DebugLevel
		}
		lg.WithLevel(lvl).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Float64("latency_ms", float64(time.Since(start).Microseconds())/1000).
			Msg("http request")
	})
}
