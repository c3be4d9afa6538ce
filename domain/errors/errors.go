// Package errors provides the host's error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
//
// Errors fall into five groups: load-time failures that make a plugin
// unusable, guest-declared domain errors, marshaling failures, protocol
// violations by the inbound request handler, and guest traps.
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
)

// ErrVersionUnsupported matches any VersionUnsupportedError.
var ErrVersionUnsupported = stdErrors.New("plugin version unsupported")

// DetailedError is implemented by errors that can describe themselves as an
// ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// VersionUnsupportedError is returned at load time when no interface
// generation of the plugin's contract accepts its declared version.
type VersionUnsupportedError struct {
	Contract entities.Contract
	Version  string
}

func (e *VersionUnsupportedError) Error() string {
	return fmt.Sprintf("no %s interface generation accepts version %s", e.Contract, e.Version)
}

// Is makes errors.Is(err, ErrVersionUnsupported) match.
func (e *VersionUnsupportedError) Is(target error) bool {
	return target == ErrVersionUnsupported
}

// ToErrorDetail implements DetailedError.
func (e *VersionUnsupportedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: "version_unsupported", Fatal: true}
}

// IOError is returned when a plugin package cannot be read.
type IOError struct {
	Err  error
	Path string
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read plugin %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *IOError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: "io", Fatal: true}
}

// ValidationError is returned when a module fails compilation, metadata
// checks, or linking against its interface generation.
type ValidationError struct {
	Err    error
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin validation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("plugin validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ValidationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: "validation", Fatal: true}
}

// GuestError is a failure the guest declared through its typed result.
// The message is opaque to the host.
type GuestError struct {
	Operation string
	Message   string
}

func (e *GuestError) Error() string {
	return e.Message
}

// ToErrorDetail implements DetailedError.
func (e *GuestError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Message, Type: "guest", Code: e.Operation}
}

// MarshalError is returned when a guest value cannot be converted into a
// host value: unknown handle, malformed magnet URI, invalid header, bad JSON.
type MarshalError struct {
	Err   error
	Value string
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("marshal %s: %v", e.Value, e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *MarshalError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "marshal", Code: e.Value}
}

// ProtocolViolationError is returned when a guest breaks the calling
// convention of an export, e.g. finishes a request without answering it.
type ProtocolViolationError struct {
	Err     error
	Message string
}

func (e *ProtocolViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ProtocolViolationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "protocol"}
}

// TrapError wraps a guest fault raised while running an export.
type TrapError struct {
	Err    error
	Export string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("guest trapped in %s: %v", e.Export, e.Err)
}

func (e *TrapError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *TrapError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "trap", Code: e.Export}
}
