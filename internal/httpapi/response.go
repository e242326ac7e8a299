package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Response is the uniform envelope for all API replies.
type Response struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func generalError(requestID string, err error) Response {
	return Response{
		Status:    StatusError,
		RequestID: requestID,
		Error:     err.Error(),
	}
}

func validationError(requestID string, errs validator.ValidationErrors) Response {
	var messages []string
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field %s is required", err.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		default:
			messages = append(messages, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}

	return Response{
		Status:    StatusError,
		RequestID: requestID,
		Error:     strings.Join(messages, ", "),
	}
}
