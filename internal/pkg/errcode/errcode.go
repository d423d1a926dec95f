package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrLoginRequired
	ErrForbidden
	ErrNotFound
	ErrGone
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
)
