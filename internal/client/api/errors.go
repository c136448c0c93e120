package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request by its HTTP status.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindRateLimited
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a non-2xx response from the bug tracker API. Message is the
// server's {"error": ...} text when one was sent.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
}

func (e *Error) Kind() Kind {
	switch {
	case e.Status == http.StatusBadRequest:
		return KindValidation
	case e.Status == http.StatusUnauthorized:
		return KindUnauthenticated
	case e.Status == http.StatusForbidden:
		return KindForbidden
	case e.Status == http.StatusNotFound:
		return KindNotFound
	case e.Status == http.StatusTooManyRequests:
		return KindRateLimited
	case e.Status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return KindUnknown
}

// UserMessage returns text fit to show the user for err. Server messages are
// shown as sent; anything else falls back.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	switch apiErr.Kind() {
	case KindUnauthenticated:
		if apiErr.Message == "" {
			return "Your session has expired. Please log in again."
		}
	case KindServer:
		return fallback
	}
	if apiErr.Message == "" {
		return fallback
	}
	return apiErr.Message
}
