package apperr

import "errors"

// Kind classifies a failure so callers can branch on it without
// inspecting error text.
type Kind int

const (
	Unknown Kind = iota
	DuplicateEnrollment
	DuplicateReview
	Validation
	RemoteUnavailable
	NotAuthenticated
	NotFound
	DataIntegrity
)

type kinder interface {
	Kind() Kind
	Message() string
}

func KindOf(err error) Kind {
	var ke kinder
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return Unknown
}

// Message returns the user-facing message attached to the error, if any.
func Message(err error) (string, bool) {
	var ke kinder
	if errors.As(err, &ke) {
		return ke.Message(), true
	}
	return "", false
}

type kindError struct {
	error
	kind Kind
	msg  string
}

func (e *kindError) Kind() Kind      { return e.kind }
func (e *kindError) Message() string { return e.msg }

func (e *kindError) Unwrap() error { return e.error }
