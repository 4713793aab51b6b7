package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewConfigurationError(CodeUnknownColumn, "quasi-identifier is not a dataset column").
		WithContext("selection", "qi").
		WithContext("column", "zip")

	assert.Equal(t, "UNKNOWN_COLUMN: quasi-identifier is not a dataset column (column=zip, selection=qi)", err.Error())

	err = NewInternalError("boom").WithDetails("disk full")
	assert.Equal(t, "INTERNAL_ERROR: boom - disk full", err.Error())
}

func TestErrorClassification(t *testing.T) {
	cfg := NewConfigurationError(CodeOverlappingColumns, "overlap")
	param := NewParameterError(CodeInvalidParameter, "epsilon")
	budget := NewPrivacyError(CodePrivacyBudgetExceeded, "spent")

	assert.True(t, IsConfigurationError(cfg))
	assert.False(t, IsParameterError(cfg))
	assert.True(t, IsParameterError(param))
	assert.False(t, IsConfigurationError(param))
	assert.True(t, errors.Is(budget, ErrPrivacyBudgetExceeded))
	assert.False(t, errors.Is(NewPrivacyError(CodeEmptyRelease, "x"), ErrPrivacyBudgetExceeded))
	assert.True(t, errors.Is(NewPrivacyError(CodeEmptyRelease, "x"), ErrPrivacyViolation))

	wrapped := fmt.Errorf("loading: %w", cfg)
	assert.True(t, IsConfigurationError(wrapped))

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, CodeOverlappingColumns, appErr.Code)

	assert.True(t, errors.Is(cfg, &AppError{Type: ErrorTypeConfiguration, Code: CodeOverlappingColumns}))
	assert.False(t, errors.Is(cfg, &AppError{Type: ErrorTypeConfiguration, Code: CodeUnknownColumn}))
}

func TestConfigLoadError(t *testing.T) {
	_, statErr := os.Stat("/nonexistent/anonyguard.yaml")
	missing := NewConfigLoadError("/nonexistent/anonyguard.yaml", statErr)
	assert.Equal(t, CodeConfigNotFound, missing.Code)
	assert.True(t, errors.Is(missing, ErrMissingConfiguration))
	assert.False(t, errors.Is(missing, ErrConfigurationLoad))
	assert.Equal(t, "/nonexistent/anonyguard.yaml", missing.Context["path"])

	broken := NewConfigLoadError("", fmt.Errorf("yaml: line 2: did not find expected key"))
	assert.Equal(t, CodeConfigLoadFailed, broken.Code)
	assert.True(t, errors.Is(broken, ErrConfigurationLoad))
	assert.Equal(t, "CONFIG_LOAD_FAILED: error reading config file - yaml: line 2: did not find expected key", broken.Error())
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.HasErrors())
	assert.NoError(t, ve.AsConfigurationError())

	ve.Add("quasi_identifiers", CodeUnknownColumn, "unknown column zip", "zip")
	ve.Add("sensitive_attributes", CodeOverlappingColumns, "column age is also a quasi-identifier", "age")

	assert.Equal(t,
		"validation failed: quasi_identifiers: unknown column zip; sensitive_attributes: column age is also a quasi-identifier",
		ve.Error())

	err := ve.AsConfigurationError()
	assert.True(t, IsConfigurationError(err))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeUnknownColumn, appErr.Code)
	assert.Equal(t, "quasi_identifiers,sensitive_attributes", appErr.Context["fields"])
}
