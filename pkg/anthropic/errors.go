package anthropic

import (
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// IsRetryable reports whether err is an API error worth retrying:
// rate limits, overload and server-side failures. Request errors
// (invalid request, authentication, billing) are permanent and return
// false, as does any error that is not an API error at all.
func IsRetryable(err error) bool {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}
