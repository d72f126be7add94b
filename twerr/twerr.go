// Package twerr implements the Twirp error model: a fixed vocabulary of
// canonical error codes, the mapping from codes to HTTP status codes, the
// JSON error envelope, and the boundary translator that turns any failure
// surfaced at the transport edge into that envelope.
//
// Code names and semantics follow the Twirp specification,
// https://twitchtv.github.io/twirp/docs/spec_v5.html#error-codes.
package twerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a canonical Twirp error code. The vocabulary is flat, not
// hierarchical, and independent of transport status codes.
type Code string

const (
	// Cancelled indicates the operation was cancelled.
	Cancelled Code = "cancelled"

	// Unknown indicates an unclassified error, for example one raised by
	// an API that returns no error information.
	Unknown Code = "unknown"

	// InvalidArgument indicates the client specified an argument that is
	// invalid regardless of the state of the system.
	InvalidArgument Code = "invalid_argument"

	// Malformed indicates the client sent a message that could not be
	// decoded.
	Malformed Code = "malformed"

	// DeadlineExceeded indicates the operation expired before completion.
	DeadlineExceeded Code = "deadline_exceeded"

	// NotFound indicates a requested entity was not found.
	NotFound Code = "not_found"

	// BadRoute indicates the request URL path was not routable to a
	// service and method. Returned by routing code only; application code
	// should use NotFound or Unimplemented instead.
	BadRoute Code = "bad_route"

	// AlreadyExists indicates an attempt to create an entity that already
	// exists.
	AlreadyExists Code = "already_exists"

	// PermissionDenied indicates the caller is identified but not
	// permitted to execute the operation.
	PermissionDenied Code = "permission_denied"

	// Unauthenticated indicates the request lacks valid authentication
	// credentials.
	Unauthenticated Code = "unauthenticated"

	// ResourceExhausted indicates some resource, such as a per-user
	// quota, has been exhausted.
	ResourceExhausted Code = "resource_exhausted"

	// FailedPrecondition indicates the system is not in a state required
	// for the operation's execution.
	FailedPrecondition Code = "failed_precondition"

	// Aborted indicates the operation was aborted, typically due to a
	// concurrency issue.
	Aborted Code = "aborted"

	// OutOfRange indicates the operation was attempted past the valid
	// range.
	OutOfRange Code = "out_of_range"

	// Unimplemented indicates the operation is not implemented or not
	// enabled in this service.
	Unimplemented Code = "unimplemented"

	// Internal indicates an invariant expected by the underlying system
	// has been broken. Wire and serialization problems are also reported
	// as Internal.
	Internal Code = "internal"

	// Unavailable indicates the service is currently unavailable, most
	// likely transiently.
	Unavailable Code = "unavailable"

	// DataLoss indicates unrecoverable data loss or corruption.
	DataLoss Code = "dataloss"
)

// ServerHTTPStatus maps a canonical code to the HTTP status a server
// responds with. The mapping is total: unknown codes map to 500.
func ServerHTTPStatus(code Code) int {
	switch code {
	case Cancelled, DeadlineExceeded:
		return http.StatusRequestTimeout
	case InvalidArgument, OutOfRange, Malformed:
		return http.StatusBadRequest
	case NotFound, BadRoute:
		return http.StatusNotFound
	case Aborted, AlreadyExists:
		return http.StatusConflict
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied, ResourceExhausted:
		return http.StatusForbidden
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case Unimplemented:
		return http.StatusNotImplemented
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a canonical Twirp error. Immutable by convention after
// creation; the translator consumes it exactly once when building the
// response.
type Error struct {
	Code Code
	Msg  string
	Meta map[string]string

	// Cause is the underlying failure, if any. Not part of the wire
	// envelope.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "twerr: <nil>"
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New creates a canonical error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf creates a canonical error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a canonical error recording cause as the underlying
// failure. If cause already is a canonical error it is returned unchanged,
// so classification done close to the failure is never overwritten.
func Wrap(code Code, msg string, cause error) *Error {
	var te *Error
	if errors.As(cause, &te) {
		return te
	}
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// WithMeta returns a copy of e with key set in its meta map. The receiver
// is not modified.
func (e *Error) WithMeta(key, value string) *Error {
	c := &Error{Code: e.Code, Msg: e.Msg, Cause: e.Cause, Meta: make(map[string]string, len(e.Meta)+1)}
	for k, v := range e.Meta {
		c.Meta[k] = v
	}
	c.Meta[key] = value
	return c
}
