package responder

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Envelope is the JSON body shared by every success and error response.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Path      string `json:"path,omitempty"`
	Timestamp string `json:"timestamp"`
}

type codedError struct {
	err  error
	code string
}

func (e *codedError) Error() string     { return e.err.Error() }
func (e *codedError) Unwrap() error     { return e.err }
func (e *codedError) ErrorCode() string { return e.code }

// WithCode attaches a machine readable code to err. The code overrides the
// status default when the error is rendered.
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{err: err, code: code}
}

// CodeOf returns the code attached with WithCode, if any.
func CodeOf(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

// StatusMetadata sets the default envelope code of an error status and how
// its failures are logged. Empty fields are derived from the status.
type StatusMetadata struct {
	Code     string
	LogLevel slog.Level
	LogMsg   string
}

func defaultStatuses() map[int]StatusMetadata {
	return map[int]StatusMetadata{
		http.StatusBadRequest:          {Code: "BAD_REQUEST", LogLevel: slog.LevelWarn},
		http.StatusUnauthorized:        {Code: "UNAUTHORIZED", LogLevel: slog.LevelWarn},
		http.StatusNotFound:            {Code: "NOT_FOUND", LogLevel: slog.LevelInfo},
		http.StatusInternalServerError: {Code: "INTERNAL_ERROR", LogLevel: slog.LevelError},
		http.StatusServiceUnavailable:  {Code: "SERVICE_UNAVAILABLE", LogLevel: slog.LevelWarn},
	}
}

func (r *Responder) metadata(status int) StatusMetadata {
	meta, ok := r.statuses[status]
	if !ok && status < http.StatusInternalServerError {
		meta.LogLevel = slog.LevelWarn
	} else if !ok {
		meta.LogLevel = slog.LevelError
	}
	if meta.Code == "" {
		meta.Code = codeFromStatus(status)
	}
	if meta.LogMsg == "" {
		meta.LogMsg = http.StatusText(status)
	}
	return meta
}

// failure builds the error envelope; a code attached with WithCode wins
// over fallback.
func failure(req *http.Request, err error, fallback string) Envelope {
	code := CodeOf(err)
	if code == "" {
		code = fallback
	}
	return Envelope{
		Error:     err.Error(),
		Code:      code,
		TraceID:   newTraceID(),
		Path:      requestPath(req),
		Timestamp: timestamp(),
	}
}

// codeFromStatus turns a status text into an envelope code, for example
// 409 into CONFLICT.
func codeFromStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("HTTP_%d", status)
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// newTraceID returns a ULID. ulid.Make draws from a process wide monotonic
// source that is safe for concurrent use.
func newTraceID() string {
	return ulid.Make().String()
}
