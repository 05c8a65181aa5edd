package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrPrecondition = errors.New("precondition not met")
	ErrBusy         = errors.New("operation already in progress")
	ErrTransport    = errors.New("transport error")
	ErrContract     = errors.New("response contract violation")
	ErrNotFound     = errors.New("not found")
	ErrSuperseded   = errors.New("session cleared")
)

// Failure carries the user-facing message for an operation failure alongside
// the marker used for classification. Error() keeps the full detail chain;
// Message() is what the control panel shows.
type Failure struct {
	marker    error
	component string
	operation string
	message   string
	cause     error
}

func (f *Failure) Error() string {
	detail := buildDetail(f.component, f.operation, f.message)
	if f.cause != nil {
		return fmt.Sprintf("%v: %s: %v", f.marker, detail, f.cause)
	}
	return fmt.Sprintf("%v: %s", f.marker, detail)
}

// Unwrap exposes both the marker and the underlying cause to errors.Is/As.
func (f *Failure) Unwrap() []error {
	if f.cause == nil {
		return []error{f.marker}
	}
	return []error{f.marker, f.cause}
}

// Message returns the user-facing text for the failure.
func (f *Failure) Message() string {
	if msg := strings.TrimSpace(f.message); msg != "" {
		return msg
	}
	if f.cause != nil {
		return f.cause.Error()
	}
	return f.marker.Error()
}

// Wrap builds an error that includes component and operation context while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransport
	}
	return &Failure{
		marker:    marker,
		component: component,
		operation: operation,
		message:   message,
		cause:     err,
	}
}

// Message extracts the user-facing text from err. Failures built by Wrap
// report their message; anything else falls back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Message()
	}
	return err.Error()
}

// Marker returns the sentinel err is tagged with, or ErrTransport when none
// applies. Contract and not-found markers take precedence over transport.
func Marker(err error) error {
	for _, marker := range []error{ErrValidation, ErrPrecondition, ErrBusy, ErrSuperseded, ErrContract, ErrNotFound, ErrTransport} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return ErrTransport
}

// IsLocal reports whether err was raised before any network call was made.
func IsLocal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrPrecondition) || errors.Is(err, ErrBusy)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
