package utils

import "fmt"

// ContextError is a plain contextual wrapper used by the low-level
// internal packages (format, reader, index) that cannot import the
// root package's classified Kind-based error without creating an
// import cycle. The root package re-wraps these with a Kind when it
// surfaces them to callers.
type ContextError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *ContextError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// WrapError creates a contextual error.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ContextError{
		Context: context,
		Cause:   cause,
	}
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *ContextError) Unwrap() error {
	return e.Cause
}
