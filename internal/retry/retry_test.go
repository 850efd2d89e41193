package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsNetworkError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":                {err: nil, want: false},
		"plain error":        {err: errors.New("boom"), want: false},
		"context canceled":   {err: context.Canceled, want: false},
		"deadline exceeded":  {err: context.DeadlineExceeded, want: true},
		"dns failure":        {err: &net.DNSError{Err: "no such host", Name: "gis.example", IsNotFound: true}, want: true},
		"connection refused": {err: &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: true},
		"connection reset":   {err: &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, want: true},
		"client timeout":     {err: &url.Error{Op: "Post", URL: "https://gis.example", Err: timeoutError{}}, want: true},
		"wrapped dns":        {err: fmt.Errorf("executing request: %w", &net.DNSError{Err: "server misbehaving"}), want: true},
		"unrelated url err":  {err: &url.Error{Op: "Post", URL: "https://gis.example", Err: errors.New("unsupported protocol scheme")}, want: false},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsNetworkError(tc.err))
		})
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	p := Default()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 2*time.Second, p.Delay)
	assert.Equal(t, 2, p.MaxRetries())
	assert.Equal(t, 2*time.Second, p.Backoff(time.Millisecond, time.Hour, 5, nil))
}

func TestMaxRetries(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Policy{Attempts: 0}.MaxRetries())
	assert.Equal(t, 0, Policy{Attempts: 1}.MaxRetries())
	assert.Equal(t, 4, Policy{Attempts: 5}.MaxRetries())
}

func TestCheckRetry(t *testing.T) {
	t.Parallel()

	p := Default()
	ctx := context.Background()

	retry, err := p.CheckRetry(ctx, nil, &net.DNSError{Err: "no such host"})
	require.NoError(t, err)
	assert.True(t, retry, "network errors are retried")

	retry, err = p.CheckRetry(ctx, &http.Response{StatusCode: http.StatusTooManyRequests}, nil)
	require.NoError(t, err)
	assert.False(t, retry, "responses are never retried")

	retry, err = p.CheckRetry(ctx, &http.Response{StatusCode: http.StatusBadGateway}, nil)
	require.NoError(t, err)
	assert.False(t, retry, "responses are never retried")

	retry, err = p.CheckRetry(ctx, nil, errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = p.CheckRetry(cancelled, nil, &net.DNSError{Err: "no such host"})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, retry)
}

func TestCustomPredicate(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("try again")
	p := Policy{Attempts: 2, Retryable: func(err error) bool { return errors.Is(err, sentinel) }}

	assert.True(t, p.ShouldRetry(fmt.Errorf("wrapped: %w", sentinel)))
	assert.False(t, p.ShouldRetry(&net.DNSError{Err: "no such host"}))
	assert.False(t, p.ShouldRetry(nil))
}
