package responder

import (
	"log/slog"
	"net/http"

	"github.com/drblury/operatorhost/jsonutil"
)

const jsonContentType = "application/json"

// ResponderOption configures NewResponder.
type ResponderOption func(*Responder)

// Responder renders the response envelope for operator and host handlers and
// logs failures with a trace identifier.
type Responder struct {
	log          *slog.Logger
	statuses     map[int]StatusMetadata
	maxBodyBytes int64
}

// NewResponder returns a Responder that logs to slog.Default and limits
// request bodies to DefaultMaxBodyBytes.
func NewResponder(opts ...ResponderOption) *Responder {
	r := &Responder{
		log:          slog.Default(),
		statuses:     defaultStatuses(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithLogger injects the logger used for error reporting.
func WithLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithMaxBodyBytes limits the bodies decoded by ReadRequestBody. Zero or a
// negative value removes the limit.
func WithMaxBodyBytes(n int64) ResponderOption {
	return func(r *Responder) {
		r.maxBodyBytes = n
	}
}

// WithStatusMetadata overrides the code and logging of one error status.
func WithStatusMetadata(status int, meta StatusMetadata) ResponderOption {
	return func(r *Responder) {
		r.statuses[status] = meta
	}
}

// Logger returns the logger errors are reported to.
func (r *Responder) Logger() *slog.Logger {
	if r == nil || r.log == nil {
		return slog.Default()
	}
	return r.log
}

// RespondWithData wraps data in a success envelope.
func (r *Responder) RespondWithData(w http.ResponseWriter, req *http.Request, status int, data any) {
	r.write(w, status, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	})
}

// HandleAPIError renders a failure envelope with status and logs it at the
// level configured for that status. A nil err writes nothing.
func (r *Responder) HandleAPIError(w http.ResponseWriter, req *http.Request, status int, err error, logMsg ...string) {
	if err == nil {
		return
	}
	meta := r.metadata(status)
	env := failure(req, err, meta.Code)

	logger := r.Logger().With("error", env.Error, "code", env.Code, "traceId", env.TraceID, "status", status)
	if len(logMsg) > 0 {
		logger = logger.With("logMessages", logMsg)
	}
	logger.Log(requestContext(req), meta.LogLevel, meta.LogMsg)

	r.write(w, status, env)
}

// HandleInternalServerError reports err with HTTP 500.
func (r *Responder) HandleInternalServerError(w http.ResponseWriter, req *http.Request, err error, logMsg ...string) {
	r.HandleAPIError(w, req, http.StatusInternalServerError, err, logMsg...)
}

// HandleBadRequestError reports err with HTTP 400.
func (r *Responder) HandleBadRequestError(w http.ResponseWriter, req *http.Request, err error, logMsg ...string) {
	r.HandleAPIError(w, req, http.StatusBadRequest, err, logMsg...)
}

// HandleNotFoundError reports err with HTTP 404.
func (r *Responder) HandleNotFoundError(w http.ResponseWriter, req *http.Request, err error, logMsg ...string) {
	r.HandleAPIError(w, req, http.StatusNotFound, err, logMsg...)
}

func (r *Responder) write(w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		r.Logger().Error("Response encoding failed.", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		r.Logger().Debug("Response write failed.", "error", err)
	}
}
