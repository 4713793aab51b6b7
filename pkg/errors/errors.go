package errors

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Common engine errors
var (
	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrConfigurationLoad    = errors.New("failed to load configuration")

	// Parameter errors
	ErrInvalidParameter = errors.New("invalid parameter")

	// Privacy errors
	ErrPrivacyViolation      = errors.New("privacy violation")
	ErrPrivacyBudgetExceeded = errors.New("privacy budget exceeded")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeInternal      ErrorType = "internal"
)

// Error codes
const (
	CodeInvalidConfiguration  = "INVALID_CONFIGURATION"
	CodeConfigNotFound        = "CONFIG_NOT_FOUND"
	CodeConfigLoadFailed      = "CONFIG_LOAD_FAILED"
	CodeInvalidParameter      = "INVALID_PARAMETER"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeUnknownColumn         = "UNKNOWN_COLUMN"
	CodeOverlappingColumns    = "OVERLAPPING_COLUMNS"
	CodeColumnCoverage        = "COLUMN_COVERAGE"
	CodePrivacyBudgetExceeded = "PRIVACY_BUDGET_EXCEEDED"
	CodeEmptyRelease          = "EMPTY_RELEASE"
	CodeInternalError         = "INTERNAL_ERROR"
)

// AppError represents an engine error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Details)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, ", "))
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WrapError wraps an existing error with engine context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewConfigurationError reports a call whose column selection or settings
// cannot produce a meaningful result. It matches ErrInvalidConfiguration.
func NewConfigurationError(code, message string) *AppError {
	return WrapError(ErrInvalidConfiguration, ErrorTypeConfiguration, code, message)
}

// NewConfigLoadError reports a configuration source that could not be
// read. A missing file matches ErrMissingConfiguration, anything else
// ErrConfigurationLoad; the underlying error becomes the details.
func NewConfigLoadError(path string, err error) *AppError {
	appErr := WrapError(ErrConfigurationLoad, ErrorTypeConfiguration, CodeConfigLoadFailed,
		"error reading config file")
	if os.IsNotExist(err) {
		appErr = WrapError(ErrMissingConfiguration, ErrorTypeConfiguration, CodeConfigNotFound,
			"config file not found")
	}
	if path != "" {
		appErr.WithContext("path", path)
	}
	return appErr.WithDetails(err.Error())
}

// NewParameterError reports an out-of-range numeric parameter. It matches
// ErrInvalidParameter.
func NewParameterError(code, message string) *AppError {
	return WrapError(ErrInvalidParameter, ErrorTypeValidation, code, message)
}

// NewPrivacyError creates a privacy error
func NewPrivacyError(code, message string) *AppError {
	cause := ErrPrivacyViolation
	if code == CodePrivacyBudgetExceeded {
		cause = ErrPrivacyBudgetExceeded
	}
	return WrapError(cause, ErrorTypePrivacy, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return WrapError(ErrInternal, ErrorTypeInternal, CodeInternalError, message)
}

// IsConfigurationError reports whether err is an InvalidConfiguration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsParameterError reports whether err is an InvalidParameter error.
func IsParameterError(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// ValidationErrorDetail represents detailed validation error information
type ValidationErrorDetail struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

// ValidationErrors collects several boundary problems so the caller can fix
// them in one go.
type ValidationErrors struct {
	Message string                  `json:"message"`
	Errors  []ValidationErrorDetail `json:"errors"`
}

// Error implements the error interface for ValidationErrors
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ve.Message
	}
	parts := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return fmt.Sprintf("%s: %s", ve.Message, strings.Join(parts, "; "))
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, code, message string, value interface{}) {
	ve.Errors = append(ve.Errors, ValidationErrorDetail{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// HasErrors checks if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// AsConfigurationError folds the collected problems into a single
// InvalidConfiguration error, or returns nil when there are none.
func (ve *ValidationErrors) AsConfigurationError() error {
	if !ve.HasErrors() {
		return nil
	}
	appErr := NewConfigurationError(ve.Errors[0].Code, ve.Error())
	fields := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		fields = append(fields, e.Field)
	}
	return appErr.WithContext("fields", strings.Join(fields, ","))
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Message: "validation failed",
		Errors:  make([]ValidationErrorDetail, 0),
	}
}
