package media

import (
	"errors"
	"net/http"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConfiguration ErrorKind = "configuration"
	KindBackend       ErrorKind = "backend"
	KindIO            ErrorKind = "io"
	KindInternal      ErrorKind = "internal"
)

// ErrNotFound is returned by repositories for unknown ids.
var ErrNotFound = errors.New("media not found")

// Error carries the failure class the transport maps onto a status code.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: ErrNotFound}
}

func ConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func BackendError(message string, err error) *Error {
	return &Error{Kind: KindBackend, Message: message, Err: err}
}

func IOError(message string, err error) *Error {
	return &Error{Kind: KindIO, Message: message, Err: err}
}

func InternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

func KindOf(err error) ErrorKind {
	var mediaErr *Error
	if errors.As(err, &mediaErr) {
		return mediaErr.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is safe to show clients: validation and lookup failures
// explain themselves, everything else falls back to the given message.
func PublicMessage(err error, fallback string) string {
	var mediaErr *Error
	if errors.As(err, &mediaErr) && mediaErr.Message != "" {
		switch mediaErr.Kind {
		case KindValidation, KindNotFound, KindConfiguration, KindBackend:
			return mediaErr.Message
		}
	}
	return fallback
}
