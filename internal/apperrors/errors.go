package apperrors

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Error type identifiers used as the error_type metric label and in log events.
const (
	TypeMissingField   = "cache_key_missing"
	TypeAuthentication = "authentication_fail"
	TypeSerialization  = "serialization_error"
	TypeDecode         = "decode_error"
	TypeStoreFault     = "circuit_breaker_fallback"
	TypeNotConnected   = "not_connected"
	TypeTimeout        = "timeout"
	TypeCanceled       = "canceled"
)

// Authentication failure reasons.
const (
	ReasonUnknownBucket        = "unknown_bucket"
	ReasonServiceNotRegistered = "service_not_registered"
)

// Typed is implemented by every error of the taxonomy.
type Typed interface {
	error
	ErrType() string
}

// ErrMissingField is returned when a required input of a cache call is empty.
type ErrMissingField struct {
	Field string
}

// Error implements the error interface.
func (e *ErrMissingField) Error() string {
	if e.Field == "cacheKey" {
		return "Cache key missing"
	}
	return fmt.Sprintf("required field %q is missing or empty", e.Field)
}

// ErrType implements Typed.
func (e *ErrMissingField) ErrType() string { return TypeMissingField }

// Is allows for error checking with errors.Is().
func (e *ErrMissingField) Is(target error) bool {
	_, ok := target.(*ErrMissingField)
	return ok
}

// ErrAuthentication is returned when the bucket is unknown or the calling
// service is not registered for it.
type ErrAuthentication struct {
	Bucket  string
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *ErrAuthentication) Error() string {
	if e.Reason == ReasonUnknownBucket {
		return fmt.Sprintf("bucket %q is not configured", e.Bucket)
	}
	return fmt.Sprintf("service %q is not authorized to use bucket %q", e.Service, e.Bucket)
}

// ErrType implements Typed.
func (e *ErrAuthentication) ErrType() string { return TypeAuthentication }

// Is allows for error checking with errors.Is().
func (e *ErrAuthentication) Is(target error) bool {
	_, ok := target.(*ErrAuthentication)
	return ok
}

// ErrSerialization wraps a failure to turn a value into its transport form.
type ErrSerialization struct {
	Err error
}

// Error implements the error interface.
func (e *ErrSerialization) Error() string {
	return fmt.Sprintf("serialize payload: %v", e.Err)
}

// ErrType implements Typed.
func (e *ErrSerialization) ErrType() string { return TypeSerialization }

// Unwrap returns the underlying error.
func (e *ErrSerialization) Unwrap() error { return e.Err }

// Is allows for error checking with errors.Is().
func (e *ErrSerialization) Is(target error) bool {
	_, ok := target.(*ErrSerialization)
	return ok
}

// ErrDecode wraps a failure to decode, decompress or parse a stored payload.
type ErrDecode struct {
	Err error
}

// Error implements the error interface.
func (e *ErrDecode) Error() string {
	return fmt.Sprintf("decode payload: %v", e.Err)
}

// ErrType implements Typed.
func (e *ErrDecode) ErrType() string { return TypeDecode }

// Unwrap returns the underlying error.
func (e *ErrDecode) Unwrap() error { return e.Err }

// Is allows for error checking with errors.Is().
func (e *ErrDecode) Is(target error) bool {
	_, ok := target.(*ErrDecode)
	return ok
}

// StoreFault is the uniform rejection produced by the store adapter fallback
// for any timeout, connection or protocol fault, whatever the primitive.
type StoreFault struct {
	Type    string
	Command string
	Message string
	Stack   string
	Err     error
}

// NewStoreFault builds a StoreFault for the given store command.
func NewStoreFault(command string, err error, stack string) *StoreFault {
	msg := "unknown store fault"
	if err != nil {
		msg = err.Error()
	}
	return &StoreFault{
		Type:    TypeStoreFault,
		Command: command,
		Message: msg,
		Stack:   stack,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *StoreFault) Error() string {
	return fmt.Sprintf("store %s: %s", e.Command, e.Message)
}

// ErrType implements Typed.
func (e *StoreFault) ErrType() string {
	if e.Type == "" {
		return TypeStoreFault
	}
	return e.Type
}

// Unwrap returns the underlying error.
func (e *StoreFault) Unwrap() error { return e.Err }

// Is allows for error checking with errors.Is().
func (e *StoreFault) Is(target error) bool {
	_, ok := target.(*StoreFault)
	return ok
}

// ErrNotConnected is returned by cache calls made before a store is attached.
type ErrNotConnected struct{}

// Error implements the error interface.
func (e *ErrNotConnected) Error() string { return "flash: cache is not connected" }

// ErrType implements Typed.
func (e *ErrNotConnected) ErrType() string { return TypeNotConnected }

// Is allows for error checking with errors.Is().
func (e *ErrNotConnected) Is(target error) bool {
	_, ok := target.(*ErrNotConnected)
	return ok
}

// Classify returns the error_type of err: the ErrType of the first typed error
// in its chain, a fixed name for context errors, or the Go type name of err.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var typed Typed
	if errors.As(err, &typed) {
		return typed.ErrType()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TypeTimeout
	case errors.Is(err, context.Canceled):
		return TypeCanceled
	}
	return reflect.TypeOf(err).String()
}
