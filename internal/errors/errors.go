package errors

import (
	"errors"
)

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrUnauthorized = &UserError{
		Err:       errors.New("user lacks access"),
		UserMsg:   "You do not have access to use this feature currently.",
		Retryable: false,
	}

	ErrTrialUsed = &UserError{
		Err:       errors.New("trial already used"),
		UserMsg:   "You have used your free trial. Use /request_access to get full access.",
		Retryable: false,
	}

	ErrTransformInProgress = &UserError{
		Err:       errors.New("transform already in progress"),
		UserMsg:   "You already have a photo being processed. Please wait for it to complete.",
		Retryable: false,
	}

	ErrBackendUnavailable = &UserError{
		Err:       errors.New("stylize backend unavailable"),
		UserMsg:   "The photo transformation service is currently unavailable. Please try again later.",
		Retryable: true,
	}

	ErrTransformTimeout = &UserError{
		Err:       errors.New("transform timeout"),
		UserMsg:   "Processing took too long and was cancelled. Please try again later.",
		Retryable: true,
	}

	ErrEmptyResult = &UserError{
		Err:       errors.New("backend returned empty result"),
		UserMsg:   "Sorry, something went wrong during processing. Please try again later.",
		Retryable: true,
	}
)

// Wrap wraps a technical error with a user message
func Wrap(err error, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return "An unexpected error occurred. Please try again later."
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
