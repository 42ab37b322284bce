package apperr

type DomainError struct {
	Err error
}

func (e *DomainError) Error() string { return e.Err.Error() }

func (e *DomainError) Unwrap() error { return e.Err }

func NewError(err error, kind Kind, msg string, opts ...Opt) error {
	e := &DomainError{Err: err}
	opts = append(opts, WithKind(kind, msg))

	return Wrap(e, opts...)
}

func AlreadyEnrolled(err error, opts ...Opt) error {
	return NewError(
		err,
		DuplicateEnrollment,
		"you are already enrolled in this course",
		opts...,
	)
}

func AlreadyReviewed(err error, opts ...Opt) error {
	return NewError(
		err,
		DuplicateReview,
		"you have already reviewed this course",
		opts...,
	)
}

func Invalid(err error, opts ...Opt) error {
	return NewError(
		err,
		Validation,
		err.Error(),
		opts...,
	)
}

func Unavailable(err error, opts ...Opt) error {
	return NewError(
		err,
		RemoteUnavailable,
		"the platform could not process your request",
		opts...,
	)
}

func Unauthenticated(err error, opts ...Opt) error {
	return NewError(
		err,
		NotAuthenticated,
		"you must be signed in",
		opts...,
	)
}

func Missing(err error, opts ...Opt) error {
	return NewError(
		err,
		NotFound,
		"the resource could not be found",
		opts...,
	)
}

func Integrity(err error, opts ...Opt) error {
	return NewError(
		err,
		DataIntegrity,
		"received a malformed record from the remote store",
		opts...,
	)
}
