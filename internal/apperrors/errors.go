// Package apperrors provides sentinel and custom error types for the application.
package apperrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrAIAnalysis is the sentinel for AI analysis failures: the LLM provider
// was unreachable or returned an unusable response. Distinct from validation
// so callers can tell "your input was bad" from "the analysis engine is unavailable".
var ErrAIAnalysis = &AIAnalysisError{}

// AIAnalysisError is a sentinel error for AI analysis failures.
type AIAnalysisError struct {
	Message string
	Cause   error
}

// NewAIAnalysisError creates an AIAnalysisError wrapping the underlying cause.
func NewAIAnalysisError(message string, cause error) *AIAnalysisError {
	return &AIAnalysisError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *AIAnalysisError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "AI analysis failed"
}

// Unwrap returns the underlying cause, if any.
func (e *AIAnalysisError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *AIAnalysisError) Is(target error) bool {
	_, ok := target.(*AIAnalysisError)

	return ok
}
