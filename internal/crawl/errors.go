package crawl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// QueueFullError is returned when the frontier is at capacity; callers must
// back off or drop the URL.
type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue full: capacity %d reached", e.Capacity)
}

// PolicyViolationError marks a URL disallowed by robots rules. Non-retryable.
type PolicyViolationError struct {
	URL    string
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation for %s: %s", e.URL, e.Reason)
}

// ClientError marks a 4xx response. Non-retryable.
type ClientError struct {
	URL        string
	StatusCode int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error for %s: status %d", e.URL, e.StatusCode)
}

// TransientNetworkError wraps timeouts, resets, refusals and 5xx responses.
// Retryable with backoff.
type TransientNetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transient failure for %s: status %d", e.URL, e.StatusCode)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// ValidationError marks extraction output rejected by validation.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.URL, e.Reason)
}

// Retryable reports whether err should re-enter the fetch attempt loop.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientNetworkError
	return errors.As(err, &transient)
}

// TransportRetryable classifies raw transport errors before they are wrapped.
// Caller abandonment is detected through ctx, not the error value: an HTTP
// client timeout satisfies errors.Is(err, context.DeadlineExceeded) even
// though it is a per-attempt failure the next attempt may clear.
func TransportRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// net.Error covers request timeouts and dial failures. Checked before
	// the context sentinels so a client timeout is not mistaken for the
	// caller going away.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
