package model

import "errors"

// ValidationError reports bad or missing input on a single field.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeUsernameTaken = "USERNAME_TAKEN"
)

var (
	// ErrForbidden is returned when the acting user does not own the resource.
	ErrForbidden = errors.New("you do not have permission to perform this action")
)
