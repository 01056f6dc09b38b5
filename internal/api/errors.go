package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any 401. The client's unauthorized hook has
	// already run by the time callers see it.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrUnavailable wraps transport failures and 5xx responses.
	ErrUnavailable = errors.New("api: service unavailable")
	// ErrValidation matches every 4xx other than 401.
	ErrValidation = errors.New("api: request rejected")
	// ErrConflict matches 409 responses, e.g. acting on an invite that changed state.
	ErrConflict = errors.New("api: conflict")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("api: not found")
	// ErrMalformedResponse indicates a 2xx body that does not fit the schema.
	ErrMalformedResponse = errors.New("api: malformed response")
)

// Error is a non-2xx response carrying the server supplied message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return e.Message
}

// Is lets errors.Is classify responses by status family.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusUnauthorized
	case ErrUnavailable:
		return e.Status >= 500
	}
	return false
}

// Message extracts a user facing message from err. Server supplied 4xx
// messages are passed through verbatim; everything else gets fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
