package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/drblury/operatorhost/operator"
)

type operatorInfoKey struct{}

// OperatorInfoFromContext returns the info of the operator serving the
// request, if any.
func OperatorInfoFromContext(ctx context.Context) (operator.Info, bool) {
	info, ok := ctx.Value(operatorInfoKey{}).(operator.Info)
	return info, ok
}

func withOperatorInfo(ctx context.Context, info operator.Info) context.Context {
	return context.WithValue(ctx, operatorInfoKey{}, info)
}

// instrument attaches the operator info to the request context and reports
// method, path, status and duration once the handler returns. Failures while
// reporting are swallowed.
func instrument(op *operator.Registered, next http.Handler, logger *slog.Logger, observer Observer) http.Handler {
	id := op.ID
	info := op.Info()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		ctx := withOperatorInfo(r.Context(), info)

		next.ServeHTTP(rec, r.WithContext(ctx))

		report(ctx, logger, observer, id, r.Method, r.URL.Path, rec.Status(), time.Since(start))
	})
}

func report(ctx context.Context, logger *slog.Logger, observer Observer, id, method, path string, status int, d time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("Operator request instrumentation failed.", "operator", id, "panic", rec)
		}
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.LogAttrs(ctx, slog.LevelDebug, "Operator request.",
			slog.String("operator", id),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", d),
		)
	}
	if observer != nil {
		observer.ObserveRequest(id, method, status, d)
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Status returns the written status, 200 if the handler wrote nothing.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
