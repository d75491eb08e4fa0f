package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind classifies fetch failures for retry and reporting decisions.
type ErrorKind string

// Failure taxonomy surfaced in job results.
const (
	KindSchemeRejected  ErrorKind = "scheme_rejected"
	KindPrivateAddress  ErrorKind = "private_address_rejected"
	KindTimeout         ErrorKind = "timeout"
	KindConnectionError ErrorKind = "connection_error"
	KindSizeLimit       ErrorKind = "size_limit_exceeded"
	KindUnknown         ErrorKind = "unknown"
)

// Error is a classified fetch failure.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf extracts the classification from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Rejected reports whether err is a policy rejection (never retried).
func Rejected(err error) bool {
	switch KindOf(err) {
	case KindSchemeRejected, KindPrivateAddress:
		return true
	}
	return false
}

// classify maps transport-level errors onto the taxonomy. Redirect-policy
// rejections arrive wrapped in *url.Error and keep their original kind.
func classify(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindTimeout, "request deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrapError(KindTimeout, "network timeout", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return wrapError(KindConnectionError, "request failed", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return wrapError(KindConnectionError, "connection failed", err)
	}
	return wrapError(KindUnknown, "fetch failed", err)
}
