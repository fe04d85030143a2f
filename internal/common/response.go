package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// ErrorBody is the "error" member of every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// statusClientClosed is logged when the caller hung up before we answered.
const statusClientClosed = 499

// JSON encodes v and writes it with status. Encoding happens before the header is sent
// so a marshal failure still yields a clean 500.
func JSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":{"code":"INTERNAL","message":"response encoding failed"}}`)
	}
	data = append(data, '\n')
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// JSONError writes {"error": {...}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// WriteError renders err. AppErrors keep their code and status; anything else is
// reported as INTERNAL without leaking the message.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, context.Canceled):
		JSONError(w, statusClientClosed, "CLIENT_CLOSED", "request cancelled", nil)
	case errors.Is(err, context.DeadlineExceeded):
		JSONError(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out", nil)
	default:
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
