package gateway

import (
	"errors"
	"net"
	"syscall"

	"github.com/stripe/stripe-go/v76"
)

// IsRetryable reports whether a gateway call may be retried by the caller with backoff.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrProviderDown) ||
		isRetryableStripeError(err) ||
		isRetryableNetworkError(err) ||
		isRetryableSystemError(err)
}

func isRetryableStripeError(err error) bool {
	var stripeError *stripe.Error
	if !errors.As(err, &stripeError) {
		return false
	}
	if stripeError.HTTPStatusCode >= 500 && stripeError.HTTPStatusCode < 600 {
		return true
	}
	switch stripeError.Code {
	case stripe.ErrorCodeRateLimit, stripe.ErrorCodeLockTimeout:
		return true
	}
	return false
}

func isRetryableNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableSystemError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
