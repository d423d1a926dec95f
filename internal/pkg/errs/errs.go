package errs

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrGone          = errors.New("gone")
	ErrLoginRequired = errors.New("login required")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalid       = errors.New("invalid")
	ErrConflict      = errors.New("conflict")
	ErrTooMany       = errors.New("too many requests")
	ErrInternal      = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsGone(err error) bool {
	return errors.Is(err, ErrGone)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
