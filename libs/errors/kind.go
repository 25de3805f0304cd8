package errors

import (
	"errors"
)

// Kind classifies a failure by who caused it and how it surfaces to callers.
type Kind string

func (k Kind) Error() string {
	return string(k)
}

const (
	// ErrInvalidArgument is malformed or missing caller input, never retried.
	ErrInvalidArgument Kind = "invalid argument"
	// ErrNotConfigured is a missing server secret or key, an operator error.
	ErrNotConfigured Kind = "not configured"
	// ErrUpstream is a failed or malformed call to a hosted service.
	ErrUpstream Kind = "upstream error"
	// ErrDependencyUnavailable is a client side dependency that did not become ready in time.
	ErrDependencyUnavailable Kind = "dependency unavailable"
	// ErrVerificationFailed is a rejected payment signature.
	ErrVerificationFailed Kind = "verification failed"
)

// Fault is a classified error carrying the human readable message shown to users.
type Fault struct {
	Kind    Kind
	Message string
	Cause   error
	Data    interface{}
}

// NewFault creates a classified error
func NewFault(kind Kind, message string, cause error) *Fault {
	return &Fault{Kind: kind, Message: message, Cause: cause}
}

// WithData attaches diagnostic data to the fault
func (f *Fault) WithData(data interface{}) *Fault {
	f.Data = data
	return f
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return f.Kind.Error()
	}
	return f.Message
}

// Unwrap returns the cause
func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is reports whether target is the kind of this fault.
func (f *Fault) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == f.Kind
}

// KindOf returns the kind of the first fault in the chain.
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if !errors.As(err, &f) {
		return "", false
	}
	return f.Kind, true
}

// MessageOf returns the user facing message of the first fault in the chain, or the error text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Error()
	}
	return err.Error()
}
