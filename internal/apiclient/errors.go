package apiclient

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the client wraps exactly one of them.
var (
	// ErrTransport means no response was received.
	ErrTransport = errors.New("backend unreachable")
	// ErrBusiness means the backend answered with allOK false or an error status.
	ErrBusiness = errors.New("backend rejected request")
	// ErrUnauthorized means the backend answered 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation means a local check failed before any request was sent.
	ErrValidation = errors.New("validation failed")
)

// Default display messages per kind.
const (
	msgTransport    = "No se pudo conectar con el servidor"
	msgBusiness     = "Error en la solicitud"
	msgUnauthorized = "Sesión expirada, inicia sesión nuevamente"
	msgValidation   = "Datos inválidos"
)

// Error is a classified failure of a backend call.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}

	cause := e.Err
	if cause != nil && cause.Error() == msg {
		cause = nil
	}

	switch {
	case e.Status != 0 && cause != nil:
		return fmt.Sprintf("%s (status %d): %v", msg, e.Status, cause)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	case cause != nil:
		return fmt.Sprintf("%s: %v", msg, cause)
	default:
		return msg
	}
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Validation returns a local validation failure carrying a display message.
func Validation(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// ValidationError classifies err as a local validation failure, using its
// text as the display message.
func ValidationError(err error) *Error {
	return &Error{Kind: ErrValidation, Message: err.Error(), Err: err}
}

// DisplayMessage turns any error into a message fit for showing to a user.
// Backend-provided messages win over the per-kind defaults.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return defaultMessage(apiErr.Kind)
	}

	return msgTransport
}

func defaultMessage(kind error) string {
	switch {
	case errors.Is(kind, ErrUnauthorized):
		return msgUnauthorized
	case errors.Is(kind, ErrBusiness):
		return msgBusiness
	case errors.Is(kind, ErrValidation):
		return msgValidation
	default:
		return msgTransport
	}
}
