package chatclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request once, at the transport boundary
type Kind int

const (
	KindGeneric Kind = iota
	KindValidation
	KindSessionExpired
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSessionExpired:
		return "session_expired"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "generic"
	}
}

// Error is a classified chat API failure. Message holds the server's
// user-facing text when there was one.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("chat %s: %v", e.Kind, e.Err)
	case e.Code != "":
		return fmt.Sprintf("chat %s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
	default:
		return fmt.Sprintf("chat %s (%d)", e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindGeneric for anything unclassified
func KindOf(err error) Kind {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Kind
	}
	return KindGeneric
}

// kindForStatus maps a response status to its kind
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindSessionExpired
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindGeneric
	}
}

// Local validation failures, raised before any request is made
var (
	ErrEmptyMessage = &Error{Kind: KindValidation, Code: "empty_message", Message: msgEmpty}
	ErrClosed       = errors.New("chat session closed")
)

const (
	msgEmpty          = "El mensaje no puede estar vacío."
	msgTooLong        = "El mensaje no puede superar los %d caracteres."
	msgLoadForbidden  = "No tienes permiso para ver esta conversación."
	msgNotFound       = "La conversación no existe o ya no está disponible."
	msgLoadFailed     = "No se pudieron cargar los mensajes. Inténtalo de nuevo."
	msgSendFailed     = "No se pudo enviar el mensaje. Inténtalo de nuevo."
	msgSendForbidden  = "No tienes permiso para enviar mensajes en esta conversación."
	msgSessionExpired = "Tu sesión ha expirado. Inicia sesión de nuevo."
)

func tooLongError(max int) *Error {
	return &Error{Kind: KindValidation, Code: "message_too_long", Message: fmt.Sprintf(msgTooLong, max)}
}
