package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeValidationFuture, MsgFutureTime, nil)
	assert.Equal(t, "validation_future: Future time sent by user", appErr.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("dial tcp: connection refused")
	appErr := NewAppError(ErrCodeExternalData, "weather source unreachable", underlying)

	assert.Same(t, underlying, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, underlying))
}

func TestAppError_WithDetailsDoesNotMutate(t *testing.T) {
	orig := &AppError{Code: ErrCodeRequestShape, Message: "missing field", Details: map[string]any{"a": 1}}
	cp := orig.WithDetails(map[string]any{"field": "request_id"})

	assert.Len(t, orig.Details, 1)
	assert.Equal(t, "request_id", cp.Details["field"])
	assert.Equal(t, 1, cp.Details["a"])
}

func TestErrorCode_IsValidation(t *testing.T) {
	assert.True(t, ErrCodeValidationFuture.IsValidation())
	assert.True(t, ErrCodeValidationPast.IsValidation())
	for _, c := range []ErrorCode{ErrCodeExternalData, ErrCodePrediction, ErrCodeRequestShape, ErrCodeUnexpected} {
		assert.False(t, c.IsValidation(), c)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
		wantMsg  string
	}{
		{
			name:     "nil",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "direct app error",
			err:      NewAppError(ErrCodePrediction, "no rain observations", nil),
			wantCode: ErrCodePrediction,
			wantMsg:  "no rain observations",
		},
		{
			name:     "wrapped app error",
			err:      fmt.Errorf("rain pipeline: %w", NewAppError(ErrCodeExternalData, "source returned 503", nil)),
			wantCode: ErrCodeExternalData,
			wantMsg:  "source returned 503",
		},
		{
			name:     "plain error is unexpected with raw message",
			err:      errors.New("boom"),
			wantCode: ErrCodeUnexpected,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestClassify_ErrorsAsThroughChain(t *testing.T) {
	inner := NewAppError(ErrCodeRequestShape, "missing required field: request_id", nil)
	err := fmt.Errorf("outer: %w", fmt.Errorf("middle: %w", inner))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrCodeRequestShape, Classify(err).Code)
}
