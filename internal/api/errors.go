package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// blockedStatusCodes are answered by the upstream when it refuses to serve us.
var blockedStatusCodes = map[int]bool{
	http.StatusForbidden:       true,
	http.StatusNotFound:        true,
	http.StatusTooManyRequests: true,
}

var blockedPhrases = []string{"blocked", "rate limit"}

// BlockedError means the upstream actively refuses requests. Retrying is pointless.
type BlockedError struct {
	StatusCode int
	Message    string
}

func (e *BlockedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream blocked request (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream blocked request: %s", e.Message)
}

// TransientError is a network failure that persisted through every attempt.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("upstream unreachable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// StatusError is an unexpected, non-blocking HTTP status from the upstream.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// IsBlocked reports whether err means the upstream is blocking or rate limiting us.
func IsBlocked(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}

// IsTransient reports whether err is a network failure that exhausted its retries.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// BlockedStatus reports whether an HTTP status code signals a block.
func BlockedStatus(code int) bool {
	return blockedStatusCodes[code]
}

// BlockedMessage reports whether an upstream message mentions blocking or rate limiting.
func BlockedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range blockedPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
