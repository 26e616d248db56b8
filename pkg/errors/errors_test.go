package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{0, ErrorTypeNetwork},
		{400, ErrorTypeValidation},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{409, ErrorTypeConflict},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, TypeForStatus(tt.status))
		})
	}
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(400))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(404))

	wrapped := fmt.Errorf("add coins: %w", New(ErrorTypeServerError, 500, "server error"))
	assert.True(t, IsRetryableError(wrapped))
	assert.Equal(t, ErrorTypeServerError, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeServerError))

	assert.False(t, IsRetryableError(fmt.Errorf("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "auth error (code 401): not authenticated", New(ErrorTypeAuth, 401, "not authenticated").Error())
	assert.Equal(t, "network error: dial failed", New(ErrorTypeNetwork, 0, "dial failed").Error())
}
