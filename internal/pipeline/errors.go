package pipeline

import "fmt"

// ValidationError marks a client-attributable bad upload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ToolInvocationError marks a failed external recognizer run. Kind is one of
// the homr failure classifications (timeout, exit, io).
type ToolInvocationError struct {
	Kind string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return e.Err.Error()
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

// ConversionError marks a converter failure on malformed or unsupported
// structured output.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	return e.Err.Error()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// InternalError marks an unexpected orchestration failure; it is surfaced on
// the job rather than swallowed.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
