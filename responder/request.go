package responder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/drblury/operatorhost/jsonutil"
)

// DefaultMaxBodyBytes caps request bodies read by ReadRequestBody.
const DefaultMaxBodyBytes int64 = 10 << 20

var (
	// ErrEmptyBody is reported when a JSON body is required but missing.
	ErrEmptyBody = errors.New("request body is required")
	// ErrBodyTooLarge is reported when a body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// ReadRequestBody decodes the JSON body of req into v. On failure it writes a
// 400 envelope and returns false; the handler should return immediately.
func (r *Responder) ReadRequestBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := r.decodeRequestBody(w, req, v); err != nil {
		r.HandleBadRequestError(w, req, err, "failed to parse request body")
		return false
	}
	return true
}

func (r *Responder) decodeRequestBody(w http.ResponseWriter, req *http.Request, v any) error {
	if req == nil || req.Body == nil || req.Body == http.NoBody {
		return WithCode(ErrEmptyBody, "INVALID_BODY")
	}

	body := req.Body
	if r.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	}

	data, err := io.ReadAll(body)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return WithCode(fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit), "PAYLOAD_TOO_LARGE")
	case err != nil:
		return fmt.Errorf("read request body: %w", err)
	case len(bytes.TrimSpace(data)) == 0:
		return WithCode(ErrEmptyBody, "INVALID_BODY")
	}

	if err := jsonutil.Unmarshal(data, v); err != nil {
		return WithCode(fmt.Errorf("malformed JSON body: %w", err), "INVALID_JSON")
	}
	return nil
}

func requestPath(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.RequestURI()
}

func requestContext(req *http.Request) context.Context {
	if req == nil {
		return context.Background()
	}
	return req.Context()
}
