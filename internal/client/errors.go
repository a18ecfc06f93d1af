package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrConnection reports a transport failure. The request is not retried.
var ErrConnection = errors.New("Connection error")

// ErrMalformedResponse reports a 2xx answer whose body is not the expected JSON.
var ErrMalformedResponse = errors.New("Malformed response")

// ValidationError is a required field that was left empty; such requests are
// never sent.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// APIError is a non-2xx answer. Message is the backend error verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Message is the text shown to the user for err.
func Message(err error) string {
	var apiErr *APIError
	var vErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, ErrConnection):
		return ErrConnection.Error()
	default:
		return err.Error()
	}
}
