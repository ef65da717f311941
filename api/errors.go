package api

import (
	"fmt"
	"net/http"

	goVolunteer "github.com/MrEthical07/goVolunteer"
)

// FieldError is one entry of a validation error list, as returned by the
// backend's request validator.
type FieldError struct {
	Msg      string `json:"msg"`
	Path     string `json:"path,omitempty"`
	Location string `json:"location,omitempty"`
}

// Error is returned for every failed call. Err is one of the root
// sentinels; Cause is the underlying transport or decode error, if any.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
	Errors  []FieldError
	Err     error
	Cause   error
}

func (e *Error) Error() string {
	msg := e.ServerMessage()
	switch {
	case e.Status != 0 && msg != "":
		return fmt.Sprintf("%s %s: %d: %v: %s", e.Method, e.Path, e.Status, e.Err, msg)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: %d: %v", e.Method, e.Path, e.Status, e.Err)
	case e.Cause != nil:
		return fmt.Sprintf("%s %s: %v: %v", e.Method, e.Path, e.Err, e.Cause)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
}

// Unwrap exposes both the classification and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// ServerMessage returns the backend's own explanation: the top-level
// message, else the first validation message, else "".
func (e *Error) ServerMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	for _, fe := range e.Errors {
		if fe.Msg != "" {
			return fe.Msg
		}
	}
	return ""
}

// classify maps an HTTP status to a root sentinel.
func classify(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return goVolunteer.ErrInvalidCredentials
	default:
		return goVolunteer.ErrServerError
	}
}
