// Package retry describes how failed upstream calls are retried.
package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

const (
	// DefaultAttempts is the total number of attempts, including the first one.
	DefaultAttempts = 3
	// DefaultDelay is the fixed wait between two attempts.
	DefaultDelay = 2 * time.Second
)

// Policy is a bounded retry policy: how many attempts, how long to wait
// between them and which errors are worth another attempt.
type Policy struct {
	Attempts  int
	Delay     time.Duration
	Retryable func(error) bool
}

// Default returns the policy used against the upstream service: three attempts,
// two seconds apart, for network failures only.
func Default() Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		Delay:     DefaultDelay,
		Retryable: IsNetworkError,
	}
}

// MaxRetries is the number of attempts after the first one.
func (p Policy) MaxRetries() int {
	if p.Attempts <= 1 {
		return 0
	}
	return p.Attempts - 1
}

// ShouldRetry reports whether err qualifies for another attempt.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if p.Retryable == nil {
		return IsNetworkError(err)
	}
	return p.Retryable(err)
}

// CheckRetry has the signature of retryablehttp.CheckRetry. Only transport
// errors are retried; a response, whatever its status, ends the loop and is
// classified by the caller.
func (p Policy) CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return p.ShouldRetry(err), nil
}

// Backoff has the signature of retryablehttp.Backoff and always waits Delay.
func (p Policy) Backoff(_, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return p.Delay
}

// IsNetworkError reports whether err is a transient network failure:
// a timeout, a DNS failure, or a refused or reset connection.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
