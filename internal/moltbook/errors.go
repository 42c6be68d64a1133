package moltbook

import "fmt"

// APIError is an application-level error from Moltbook: an HTTP status >= 400
// with an error envelope, or a response body that is not valid JSON. These
// are never retried, since the same request would fail the same way again. The
// upstream's own message is preserved verbatim; Hint is optional advice from
// the error envelope.
type APIError struct {
	Message    string
	StatusCode int
	Hint       string
}

func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("moltbook: %s (hint: %s)", e.Message, e.Hint)
	}
	return "moltbook: " + e.Message
}

// UnreachableError means every transport attempt failed (connection refused,
// timeout, DNS). It carries the last attempt's error.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("moltbook unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
