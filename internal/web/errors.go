package web

// errors.go turns errors into responses. The technical error is logged with
// the request id; the client gets the mapped user message and code, as JSON
// for API callers and as an HTML alert for the browser.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/cardconv/internal/core"
	"github.com/JonMunkholm/cardconv/internal/logging"
	"github.com/JonMunkholm/cardconv/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Lines   []string `json:"lines,omitempty"`
	RunID   string   `json:"run_id,omitempty"`
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	respondRunError(w, r, err, status, "")
}

// respondRunError is respondError for failures tied to a recorded run.
func respondRunError(w http.ResponseWriter, r *http.Request, err error, status int, runID string) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	}
	if info := core.NewErrorInfo(err); len(info.Lines) > 0 {
		resp.Lines = info.Lines
	}
	writeJSON(w, r, status, resp)
}

// statusFor picks the response status for a StartRun or history error.
func statusFor(err error) int {
	var schemaErr *core.SchemaError
	var inputErr *core.InputError
	switch {
	case err == nil:
		return http.StatusOK
	case strings.Contains(err.Error(), "file too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoInput),
		errors.Is(err, core.ErrEmptyInput),
		errors.As(err, &schemaErr),
		errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRunNotFound), errors.Is(err, core.ErrNoOutput):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON reports whether the client expects a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
