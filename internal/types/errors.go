package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// The closed error taxonomy. Every failure surfaced over HTTP is classified
// into exactly one of these codes.
const (
	// Admission window violations.
	ErrCodeValidationFuture ErrorCode = "validation_future"
	ErrCodeValidationPast   ErrorCode = "validation_past"

	// The weather source could not be resolved, reached, or parsed.
	ErrCodeExternalData ErrorCode = "external_data_error"

	// The engine could not turn the observation set into a prediction.
	ErrCodePrediction ErrorCode = "prediction_error"

	// A required request field is missing or malformed.
	ErrCodeRequestShape ErrorCode = "request_shape_error"

	// Anything not covered above.
	ErrCodeUnexpected ErrorCode = "unexpected_error"
)

// IsValidation reports whether the code is an admission window rejection.
func (c ErrorCode) IsValidation() bool {
	return c == ErrCodeValidationFuture || c == ErrCodeValidationPast
}

// Canonical messages for window rejections. Clients match on these strings.
const (
	MsgFutureTime      = "Future time sent by user"
	MsgPastUnsupported = "Past predictions not implemented yet"
)

// AppError is the standard application error type used throughout the service.
// Domain errors are expressed as AppError so the HTTP layer can classify them
// without inspecting error strings.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Classification is the outcome of mapping an arbitrary error onto the taxonomy.
type Classification struct {
	Code    ErrorCode
	Message string
}

// Classify maps err onto the closed taxonomy. An AppError anywhere in the chain
// keeps its code and message; anything else is unexpected and reported with
// its raw message.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Classification{Code: appErr.Code, Message: appErr.Message}
	}
	return Classification{Code: ErrCodeUnexpected, Message: err.Error()}
}
