package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows which HTTP status it should surface
// as. Handlers hand these to AppErrorResponse; any other error renders
// as a plain 500.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// InternalError wraps an upstream failure, a store read or a queue
// publish, as a 500 with a stable client-facing message.
func InternalError(message string, err error) *AppError {
	return &AppError{Code: "ERR_INTERNAL", Message: message, Status: http.StatusInternalServerError, Err: err}
}
