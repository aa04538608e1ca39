package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/drblury/operatorhost/jsonutil"
	"github.com/drblury/operatorhost/responder"
)

// recoverPanics turns a handler panic into a 500 envelope. Panics with
// http.ErrAbortHandler are re-raised so the server aborts the connection.
func recoverPanics(resp *responder.Responder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				resp.HandleInternalServerError(w, r, errors.New("internal server error"),
					fmt.Sprintf("panic: %v", rec), string(debug.Stack()))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// allowCORS answers preflights with 204 and decorates other requests that
// carry an allowed Origin.
func allowCORS(cfg CORSConfig) Middleware {
	wildcard := slices.Contains(cfg.Origins, "*")
	methods := strings.Join(cfg.Methods, ",")
	headers := strings.Join(cfg.Headers, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			switch {
			case wildcard && !cfg.AllowCredentials:
				h.Set("Access-Control-Allow-Origin", "*")
			case wildcard || slices.Contains(cfg.Origins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitDuration answers 503 with a REQUEST_TIMEOUT envelope when a handler
// runs longer than d.
func limitDuration(d time.Duration) Middleware {
	body, err := jsonutil.Marshal(responder.Envelope{
		Error: fmt.Sprintf("request exceeded %s", d),
		Code:  "REQUEST_TIMEOUT",
	})
	if err != nil {
		body = []byte("request timed out")
	}
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, string(body))
	}
}

// logRequests logs one line per finished request. Request headers are only
// attached at debug level, with hide redacted.
func logRequests(logger *slog.Logger, quiet, hide []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(quiet, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.Status()),
				slog.Duration("duration", time.Since(start)),
			}
			if logger.Enabled(ctx, slog.LevelDebug) {
				headers := r.Header.Clone()
				redactHeaders(headers, hide)
				attrs = append(attrs, slog.Any("headers", headers))
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "Request handled.", attrs...)
		})
	}
}

func redactHeaders(headers http.Header, hide []string) {
	for _, name := range hide {
		key := http.CanonicalHeaderKey(name)
		values, ok := headers[key]
		if !ok {
			continue
		}
		n := 0
		for _, v := range values {
			n += len(v)
		}
		headers[key] = []string{fmt.Sprintf("[REDACTED - %d bytes]", n)}
	}
}
