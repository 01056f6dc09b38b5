package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// Redirect answers a form post with 303 so the browser follows with GET.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Succeed flashes msg and redirects to target.
func Succeed(w http.ResponseWriter, r *http.Request, msg, target string) {
	if msg != "" {
		shared.AddFlash(r.Context(), shared.FlashSuccess, msg)
	}
	Redirect(w, r, target)
}

// Fail flashes the user message for err and redirects to back. A rejected
// credential goes to the login page instead since the session is already gone.
func Fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, back string) {
	Log(r, logger, err)
	shared.AddFlash(r.Context(), shared.FlashError, UserMessage(err))
	if errors.Is(err, api.ErrUnauthorized) {
		back = rbac.PathLogin
	}
	Redirect(w, r, back)
}

// Log writes err at a level matching how surprising it is.
func Log(r *http.Request, logger *slog.Logger, err error) {
	if logger == nil || err == nil {
		return
	}
	attrs := []any{slog.String("path", r.URL.Path), slog.Any("error", err)}
	if Expected(err) {
		logger.Debug("action rejected", attrs...)
		return
	}
	logger.Warn("action failed", attrs...)
}
