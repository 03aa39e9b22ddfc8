package web

// errors.go turns failures into responses.
//
// Every error is mapped through core.MapError so clients get a stable code
// and a suggested action. The technical error is logged with the request id.
// API routes answer in JSON, pages in plain text.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/LoanIngest/internal/catalog"
	"github.com/JonMunkholm/LoanIngest/internal/core"
	"github.com/JonMunkholm/LoanIngest/internal/ingest"
	"github.com/JonMunkholm/LoanIngest/internal/logging"
	"github.com/JonMunkholm/LoanIngest/internal/source"
)

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Action      string `json:"action,omitempty"`
	Code        string `json:"code"`
	IngestionID string `json:"ingestion_id,omitempty"`
}

// statusFor picks the HTTP status for an ingestion failure.
func statusFor(err error) int {
	var ufe *source.UnsupportedFormatError
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, ingest.ErrTooManyIngestions):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrClientNotFound), errors.Is(err, ingest.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, source.ErrFileTooLarge), errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &ufe),
		errors.Is(err, source.ErrEmptyFile),
		errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"invalid csv", "invalid json", "encoding error"} {
		if strings.Contains(msg, p) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int, ingestionID string) {
	msg := core.MapError(err)

	level := slog.LevelError
	if core.IsUserFacing(err) && status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"ingestion_id", ingestionID,
	)

	if strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, status, ErrorResponse{
			Error:       msg.Message,
			Action:      msg.Action,
			Code:        msg.Code,
			IngestionID: ingestionID,
		})
		return
	}
	http.Error(w, core.FormatUserError(err), status)
}
