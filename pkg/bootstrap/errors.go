package bootstrap

import (
	"errors"
	"fmt"
)

// Kind classifies an initialization failure
type Kind string

const (
	KindMissingCredential    Kind = "missing_credential"
	KindNoCapabilities       Kind = "no_capabilities"
	KindRequiredSourceFailed Kind = "required_source_failed"
	KindUnexpected           Kind = "unexpected"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrMissingCredential    = &Error{Kind: KindMissingCredential}
	ErrNoCapabilities       = &Error{Kind: KindNoCapabilities}
	ErrRequiredSourceFailed = &Error{Kind: KindRequiredSourceFailed}
	ErrUnexpected           = &Error{Kind: KindUnexpected}
)

// Error is returned by Initialize when no agent could be built
type Error struct {
	Kind Kind
	// Source names the source that tripped the policy, if any
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := "initialization failed: " + string(e.Kind)
	if e.Source != "" {
		msg += " (source " + e.Source + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind carried by err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, source string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Source: source, Err: fmt.Errorf(format, args...)}
}
