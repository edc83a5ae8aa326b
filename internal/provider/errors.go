package provider

import "fmt"

// ShapeError means an expected HTML element or table header is gone: the
// provider changed its page layout. Not retryable; needs operator attention.
type ShapeError struct {
	Missing string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("provider page shape changed: %s is missing", e.Missing)
}

// EncodingError means a field value cannot be represented in the provider's
// ISO-8859-1 form encoding. The request is aborted before any network write.
type EncodingError struct {
	Field string
	Rune  rune
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("field %q contains %q, which is not representable in ISO-8859-1", e.Field, e.Rune)
}

// ConnError wraps a network or timeout failure. Callers may retry with
// backoff; the client itself never does.
type ConnError struct {
	Phase string
	Err   error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Phase, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
