package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{0, ErrorTypeNetwork},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{400, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, FromStatusCode(tt.code))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}

func TestTypeOfWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("poll facebook: %w", Wrap(ErrorTypeNetwork, cause, "request failed"))

	assert.Equal(t, ErrorTypeNetwork, TypeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "auth error (code 401): bad token", New(ErrorTypeAuth, 401, "bad %s", "token").Error())
	assert.Equal(t, "not_found error: no key", New(ErrorTypeNotFound, 0, "no key").Error())
}
