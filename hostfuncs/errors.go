package hostfuncs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadHandle    = "BAD_HANDLE"
	CodeUnsupported  = "UNSUPPORTED"
	CodeNoSuchStore  = "NO_SUCH_STORE"
	CodeAccessDenied = "ACCESS_DENIED"
	CodeEgress       = "EGRESS_FAILED"
)

// ErrorResponse represents a structured error that can be returned as JSON to plugins.
// Host functions answer recoverable failures with this instead of trapping the guest.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "NO_SUCH_STORE").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`
}

// ToJSON serializes the ErrorResponse to JSON bytes.
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// HostError is the error a capability returns to have a specific
// ErrorResponse sent to the guest.
type HostError struct {
	Kind    string
	Message string
	Status  int
}

func (e *HostError) Error() string {
	return e.Kind + ": " + e.Message
}

// Response converts e to its wire form.
func (e *HostError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Kind, Message: e.Message, Code: e.Status}
}

// ErrUnsupported is returned by capabilities that are declared but not implemented.
var ErrUnsupported = &HostError{Kind: CodeUnsupported, Message: "capability not implemented by this host", Status: http.StatusNotImplemented}

// ErrNoSuchStore is returned when a key-value bucket id does not exist.
var ErrNoSuchStore = &HostError{Kind: CodeNoSuchStore, Message: "no such key-value store", Status: http.StatusNotFound}

// ResponseFor maps any error to the ErrorResponse sent to the guest.
func ResponseFor(err error) ErrorResponse {
	var he *HostError
	if errors.As(err, &he) {
		return he.Response()
	}
	if errors.Is(err, resource.ErrNotFound) || errors.Is(err, resource.ErrWrongType) {
		return ErrorResponse{Error: CodeBadHandle, Message: err.Error(), Code: http.StatusBadRequest}
	}
	return NewInternalError(err.Error())
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   CodeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError creates an error response for unknown handler names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   CodeNotFound,
		Message: "unknown host function: " + name,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   CodeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	switch v := panicValue.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = "panic recovered"
	}
	return NewInternalError("panic: " + msg)
}

func validationErr(message string) error {
	return &HostError{Kind: CodeValidation, Message: message, Status: http.StatusBadRequest}
}
