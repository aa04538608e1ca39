// Package responder renders the JSON envelope shared by every endpoint of the
// host: {success, data, error, code, traceId, timestamp}. Errors are logged
// with a ULID trace identifier that is echoed back to the caller.
package responder
