// Package verrors defines typed errors with kinds for the API client.
// It provides a structured approach to error handling with machine-readable
// error kinds and human-friendly messages, so that callers can distinguish
// credential problems from connection problems from per-query failures
// without string matching.
//
// The package supports wrapping underlying errors while maintaining error
// kind information, and plays well with errors.Is/errors.As.
package verrors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

// Credential kinds: the configuration bundle or key material is unusable.
const (
	// MissingField indicates a required field is absent from the bundle.
	MissingField Kind = "missing_field"
	// UnreadableFile indicates the bundle file could not be read.
	UnreadableFile Kind = "unreadable_file"
	// MalformedEncoding indicates the bundle or its PEM material failed to parse.
	MalformedEncoding Kind = "malformed_encoding"
)

// Connect kinds: establishing the authenticated connection failed.
const (
	// Unreachable indicates a network-level failure reaching the server.
	Unreachable Kind = "unreachable"
	// HandshakeFailed indicates certificate validation failed on either side.
	HandshakeFailed Kind = "handshake_failed"
	// ConnectTimeout indicates the handshake did not complete in time.
	ConnectTimeout Kind = "connect_timeout"
)

// Channel kinds: a single query channel terminated abnormally.
const (
	// RemoteError indicates the server reported a query failure.
	RemoteError Kind = "remote_error"
	// Timeout indicates no frame arrived within the configured idle bound.
	Timeout Kind = "timeout"
	// ConnectionClosed indicates the shared connection went away mid-stream.
	ConnectionClosed Kind = "connection_closed"
	// OutOfOrderFrame indicates the server violated the stream protocol.
	OutOfOrderFrame Kind = "out_of_order_frame"
	// Cancelled indicates the caller cancelled the channel.
	Cancelled Kind = "cancelled"
)

// E wraps an error with kind and human-friendly message.
// Code carries the server-supplied status for RemoteError kinds.
type E struct {
	Kind    Kind
	Message string
	Code    int32
	Err     error
}

func (e *E) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Kind == RemoteError:
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *E) Unwrap() error { return e.Err }

// Is matches two E values on Kind, so errors.Is(err, &E{Kind: k}) works.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error with a kind and message.
func New(kind Kind, msg string) *E { return &E{Kind: kind, Message: msg} }

// Newf creates an error with a kind and a formatted message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a kind and message.
func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }

// Remote creates a RemoteError carrying the server's code and message.
func Remote(code int32, msg string) *E { return &E{Kind: RemoteError, Message: msg, Code: code} }

// KindOf extracts the Kind from an error chain, or "" when the error carries none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
