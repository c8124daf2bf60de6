package chat

import "errors"

var (
	ErrInvalidDescriptor = errors.New("room descriptor has no id")
	ErrTabNotFound       = errors.New("tab not found")
	ErrMuted             = errors.New("you are muted in this room")
	ErrForbidden         = errors.New("your role cannot perform this action")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrNoUsername        = errors.New("username is required")
	ErrNoBackend         = errors.New("no room backend configured")
	ErrSessionClosed     = errors.New("chat session closed")
)

// Category groups errors by how a front end should surface them.
type Category string

const (
	CategoryTransport  Category = "transport"
	CategoryModeration Category = "moderation"
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryInternal   Category = "internal"
)

type retryable interface {
	Retryable() bool
}

// Classify maps err onto a Category. Errors exposing Retryable() are transport failures.
func Classify(err error) Category {
	var r retryable
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMuted), errors.Is(err, ErrForbidden):
		return CategoryModeration
	case errors.Is(err, ErrInvalidDescriptor), errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrNoUsername):
		return CategoryValidation
	case errors.Is(err, ErrTabNotFound):
		return CategoryNotFound
	case errors.As(err, &r):
		return CategoryTransport
	}
	return CategoryInternal
}
