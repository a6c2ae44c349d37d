package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request id, then
// returned to the client as a coded message from core.MapError. The client
// never sees the raw error text.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := s.logError(r, err, statusCode)
	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "30")
	}
	respondErrorJSON(w, userMsg, statusCode)
}

// logError logs err with the request id and returns its user message.
func (s *Server) logError(r *http.Request, err error, statusCode int) core.UserMessage {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)
	return userMsg
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeError writes an error that did not come from the service, such as a
// malformed request.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	slog.Warn("request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"reason", message,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondErrorJSON(w, core.UserMessage{Message: message, Code: code}, status)
}

// statusFor chooses the HTTP status for a service error.
func statusFor(err error) int {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, core.ErrTreeNotFound),
		errors.Is(err, core.ErrImportNotFound),
		errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNoPendingChanges):
		return http.StatusConflict
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return http.StatusConflict
	case errors.Is(err, gedcom.ErrInvalidRecord),
		errors.Is(err, core.ErrInvalidSetting),
		errors.Is(err, core.ErrEmptyFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
