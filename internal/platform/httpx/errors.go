// Package httpx maps action outcomes to HTTP responses.
package httpx

import (
	"errors"
	"net/http"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// Messages shown when an error carries no user facing text of its own.
const (
	MsgSessionExpired = "Sua sessão expirou. Entre novamente."
	MsgUnavailable    = "Serviço indisponível. Tente novamente em instantes."
	MsgDuplicate      = "Este formulário já foi enviado."
	MsgInvalid        = "Dados inválidos."
	MsgUnexpected     = "Não foi possível concluir a operação."
)

// UserError is an error whose text is safe to show on a page as is.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string {
	return e.Msg
}

// NewUserError builds a UserError.
func NewUserError(msg string) error {
	return &UserError{Msg: msg}
}

// UserMessage turns err into the text the page shows for it. API validation
// messages pass through verbatim; infrastructure failures get generic text.
func UserMessage(err error) string {
	var userErr *UserError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &userErr):
		return userErr.Msg
	case errors.Is(err, shared.ErrDuplicateSubmission):
		return MsgDuplicate
	case errors.Is(err, api.ErrUnauthorized):
		return MsgSessionExpired
	case errors.Is(err, api.ErrUnavailable), errors.Is(err, api.ErrMalformedResponse):
		return MsgUnavailable
	case errors.Is(err, api.ErrValidation):
		return api.Message(err, MsgInvalid)
	default:
		return MsgUnexpected
	}
}

// StatusFor picks the status code for rendering err in place.
func StatusFor(err error) int {
	var userErr *UserError
	switch {
	case errors.As(err, &userErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrDuplicateSubmission), errors.Is(err, api.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrUnavailable), errors.Is(err, api.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether err is an ordinary outcome not worth a warning log.
func Expected(err error) bool {
	var userErr *UserError
	return errors.As(err, &userErr) ||
		errors.Is(err, shared.ErrDuplicateSubmission) ||
		errors.Is(err, api.ErrUnauthorized) ||
		errors.Is(err, api.ErrValidation)
}
