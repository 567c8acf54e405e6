package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/kidpoints/internal/auth"
)

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the WebSocket upgrade reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestScope is filled in by RequireFamily further down the chain so the
// request line can name the family that made the call.
type requestScope struct {
	principal auth.Principal
}

type requestScopeKey struct{}

// annotatePrincipal records p on the request's log scope, if there is one.
func annotatePrincipal(ctx context.Context, p auth.Principal) {
	if s, ok := ctx.Value(requestScopeKey{}).(*requestScope); ok {
		s.principal = p
	}
}

// RequestLogger logs one line per request: method, path, status, duration,
// remote IP, request ID and, once authenticated, family and actor. 5xx is
// logged at Error and 4xx at Warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			scope := &requestScope{}
			ctx := context.WithValue(r.Context(), requestScopeKey{}, scope)

			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", RealIP(r)),
			}
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if p := scope.principal; p.FamilyID != 0 {
				attrs = append(attrs, slog.Int64("family_id", p.FamilyID), slog.String("actor", p.Actor))
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(ctx, level, "request", attrs...)
		})
	}
}
