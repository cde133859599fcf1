package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the transport layer can pick a status code
// without inspecting error text.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
	KindGone
	KindTooManyRequests
	KindGatewayTimeout
)

// Error is the domain error carried from services to handlers. Message is
// user-facing; the wrapped cause never reaches the client.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause for logging while keeping the user-facing message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

const genericMessage = "something went wrong, please try again later"

// Internal hides the cause behind a generic message.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: genericMessage, cause: cause}
}

// From returns err as an *Error, converting unclassified failures into
// KindInternal. Already-classified errors pass through unchanged so the kind
// assigned deepest in the call chain reaches the boundary.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func (e *Error) Status() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindGone:
		return http.StatusGone
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
