package anthropic

import (
	"errors"
	"fmt"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable_RetryableStatusCodes(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		err := &sdk.Error{StatusCode: code}
		assert.True(t, IsRetryable(err), "status %d should be retryable", code)
	}
}

func TestIsRetryable_PermanentStatusCodes(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 413, 422} {
		err := &sdk.Error{StatusCode: code}
		assert.False(t, IsRetryable(err), "status %d should be permanent", code)
	}
}

func TestIsRetryable_WrappedAPIError(t *testing.T) {
	err := fmt.Errorf("assist: create message: %w", &sdk.Error{StatusCode: 529})
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable_NonAPIError(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("connection reset")))
}
