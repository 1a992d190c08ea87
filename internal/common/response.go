package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrorBody is the payload under "error" in every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": {...}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteError renders err. An AppError keeps its code and status; anything
// else is a 500 carrying fallback, so internal messages never leak.
func WriteError(w http.ResponseWriter, err error, fallback string) {
	appErr, ok := AsAppError(err)
	if !ok {
		if fallback == "" {
			fallback = "internal error"
		}
		JSONError(w, http.StatusInternalServerError, "INTERNAL", fallback, nil)
		return
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusBadRequest
	}
	code := appErr.Code
	if code == "" {
		code = http.StatusText(status)
	}
	message := appErr.Message
	if message == "" {
		message = appErr.Error()
	}
	JSONError(w, status, code, message, appErr.Details)
}

// DecodeJSON reads a single JSON document from the request body.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return BadRequest("request body is empty", io.EOF)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("request body is empty", err)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &AppError{Code: "PAYLOAD_TOO_LARGE", Message: "request entity too large", HTTPStatus: http.StatusRequestEntityTooLarge, Err: err}
		}
		return BadRequest("invalid payload", err)
	}
	return nil
}
