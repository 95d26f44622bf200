package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/roach88/widgetd/internal/widget"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// requestError is a client mistake detected before reaching the repository.
type requestError struct {
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{message: fmt.Sprintf(format, args...)}
}

// statusOf maps an error to its HTTP status and client-facing message.
// Infrastructure failures never leak their text.
func statusOf(err error) (int, string) {
	var werr *widget.Error
	if errors.As(err, &werr) {
		switch werr.Code {
		case widget.CodeValidation:
			return http.StatusBadRequest, werr.Message
		case widget.CodeNotFound:
			return http.StatusNotFound, fmt.Sprintf("widget %d not found", werr.ID)
		case widget.CodePage:
			return http.StatusNotFound, werr.Message
		}
	}

	var rerr *requestError
	if errors.As(err, &rerr) {
		return http.StatusBadRequest, rerr.message
	}
	if errors.Is(err, io.EOF) {
		return http.StatusBadRequest, "request body is required"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "repository is busy, try again"
	}
	if errors.Is(err, context.Canceled) {
		return 499, "request cancelled"
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

// fail writes the response for err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	text := http.StatusText(status)
	if text == "" {
		text = "Client Closed Request"
	}
	writeJSON(w, status, ErrorResponse{Type: text, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
