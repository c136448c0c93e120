package domain

import "errors"

// Error kinds. Each maps to exactly one HTTP status at the API boundary.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access forbidden")
	ErrBugNotFound        = errors.New("bug not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Error carries a kind plus the message that is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// Validation returns an ErrValidation with a caller-facing message.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// Forbidden returns an ErrForbidden with a caller-facing message.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Message extracts the caller-facing message of a domain error, or "" when
// err carries none.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return ""
}
