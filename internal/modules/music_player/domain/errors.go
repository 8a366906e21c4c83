package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure so callers can decide how to react to it.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidInput
	KindNotFound
	KindRateLimited
	KindTimeout
	KindUpstreamUnavailable
	KindPermissionDenied
	KindStateConflict
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindPermissionDenied:
		return "permission_denied"
	case KindStateConflict:
		return "state_conflict"
	default:
		return "internal"
	}
}

// Retryable reports whether an operation failing with this kind may succeed when retried.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindUpstreamUnavailable
}

// Error is a classified error.
type Error struct {
	Kind   ErrorKind
	Reason string // user-facing explanation, may be empty

	// RetryAfter is the backend's hint for RateLimited errors.
	RetryAfter time.Duration

	Err error
}

// NewError creates a classified error.
func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// RateLimited creates a RateLimited error carrying the backend's retry-after hint.
func RateLimited(retryAfter time.Duration, err error) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Reason:     "the source is rate limiting requests",
		RetryAfter: retryAfter,
		Err:        err,
	}
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind-only sentinels (no reason, no cause) against any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrInternal            = &Error{Kind: KindInternal}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrStateConflict       = &Error{Kind: KindStateConflict}
)

// KindOf returns the classification of any error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// RetryAfterOf returns the retry-after hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// ReasonOf returns the user-facing reason of a classified error.
// Internal errors never expose their detail.
func ReasonOf(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "Something went wrong while processing your request."
	}
	if e.Reason != "" {
		return e.Reason
	}

	switch e.Kind {
	case KindInvalidInput:
		return "The request is not valid."
	case KindNotFound:
		return "No results found."
	case KindRateLimited:
		return "The source is rate limiting requests, try again later."
	case KindTimeout:
		return "The source took too long to respond."
	case KindUpstreamUnavailable:
		return "The source is currently unavailable."
	case KindPermissionDenied:
		return "This content is not available."
	default:
		return "This action is not possible right now."
	}
}
