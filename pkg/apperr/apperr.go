// Package apperr enriches service-layer errors with an operation tag and a
// timestamp so handlers can surface a stable message without inspecting raw
// database errors.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry and HTTP-status decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindBusiness // stored-procedure style failure: final, never retried
	KindTransient
)

// Error wraps an underlying error with the operation that produced it and
// the time it occurred.
type Error struct {
	Op   string
	Kind Kind
	Time time.Time
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E tags err with the given operation. A nil err returns nil.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Time: time.Now(), Err: err}
}

// Validation builds a user-facing validation error.
func Validation(op, msg string) error {
	return E(op, KindValidation, errors.New(msg))
}

// Unauthorized builds an authorization failure. No retry, no partial writes.
func Unauthorized(op, msg string) error {
	return E(op, KindUnauthorized, errors.New(msg))
}

// Business builds a final business-rule failure.
func Business(op, msg string) error {
	return E(op, KindBusiness, errors.New(msg))
}

// KindOf extracts the classification, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether a failed operation may be attempted again.
// Authorization, validation and business failures are final.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindUnauthorized, KindNotFound, KindBusiness:
		return false
	}
	return true
}
