package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"smarthome-cloud/internal/resource"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess writes a success envelope with the given code.
func WriteSuccess(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// WriteError maps a service error onto the response envelope. Unknown
// errors become 500 with a generic message so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, resource.ErrValidation):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, resource.ErrConflict):
		code = http.StatusConflict
		message = err.Error()
	case errors.Is(err, resource.ErrNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, resource.ErrUnauthorized):
		code = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, resource.ErrForbidden):
		code = http.StatusForbidden
		message = err.Error()
	}

	writeJSON(w, code, Envelope{Status: StatusFail, Message: message})
}

// WriteFail writes a fail envelope with an explicit code and message.
func WriteFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Envelope{Status: StatusFail, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
