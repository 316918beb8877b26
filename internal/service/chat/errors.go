package chat

import "errors"

// MaxBodyLen is the maximum message body length in characters.
const MaxBodyLen = 5000

// Domain errors. ErrNotFound deliberately covers both "does not exist"
// and "exists but hidden from this viewer" so the existence of private
// conversations never leaks through error shapes.
var (
	ErrNotFound    = errors.New("conversation not found")
	ErrForbidden   = errors.New("forbidden")
	ErrSelfDirect  = errors.New("cannot message yourself")
	ErrEmptyBody   = errors.New("message body is required")
	ErrBodyTooLong = errors.New("message body too long")
)

// IsValidation reports whether err is a request-validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrBodyTooLong) || errors.Is(err, ErrSelfDirect)
}
