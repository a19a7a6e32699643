package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("VALIDATION_ERROR", "invalid amount", http.StatusBadRequest),
			expected: "[VALIDATION_ERROR] invalid amount",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("INTERNAL_ERROR", "db error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[INTERNAL_ERROR] db error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("INTERNAL_ERROR", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("VALIDATION_ERROR", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Unauthorized", ErrUnauthorized(""), "UNAUTHORIZED", 401},
		{"Validation", ErrValidation("bad field"), "VALIDATION_ERROR", 400},
		{"NotFound", ErrNotFound("Agent"), "NOT_FOUND", 404},
		{"PolicyDenied", ErrPolicyDenied("kill_switch_active"), "POLICY_DENIED", 403},
		{"InsufficientBalance", ErrInsufficientBalance("sats", 100, 50), "INSUFFICIENT_BALANCE", 402},
		{"Upstream", ErrUpstream("openai", fmt.Errorf("timeout")), "UPSTREAM_ERROR", 502},
		{"RateLimit", ErrRateLimit(), "RATE_LIMIT", 429},
		{"Internal", InternalError(fmt.Errorf("boom")), "INTERNAL_ERROR", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestErrPolicyDenied_CarriesReason(t *testing.T) {
	err := ErrPolicyDenied("daily_limit_exceeded")
	details, ok := err.Details.(map[string]string)
	require := assert.New(t)
	require.True(ok)
	require.Equal("daily_limit_exceeded", details["policy_reason"])
}

func TestErrNotFound_IncludesEntity(t *testing.T) {
	err := ErrNotFound("Wallet")
	assert.Contains(t, err.Message, "Wallet")
	assert.Equal(t, "NOT_FOUND", err.Code)
}
