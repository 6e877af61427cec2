// Package retry provides the retry policy shared by every outbound
// dependency: asset uploads, narrative and image generation, and speech
// synthesis all run under the same exponential backoff with per-call
// classification of retryable errors.
package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"github.com/lumenhq/fable-api/internal/platform/logger"
)

// Classifier decides whether an error is worth retrying.
type Classifier func(err error) bool

// Policy retries an operation with exponential backoff: the n-th retry
// waits BaseDelay doubled n times, so a 2s base gives 2s, 4s, 8s.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Retryable classifies errors; nil defaults to IsTransient.
	Retryable Classifier
}

// NewPolicy builds a Policy, substituting sane values for out-of-range
// inputs so a zero config still behaves.
func NewPolicy(maxAttempts int, baseDelay time.Duration, retryable Classifier) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Retryable:   retryable,
	}
}

// DelayFor returns the backoff applied after the given zero-based failed
// attempt: BaseDelay << attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << uint(attempt)
}

// Do runs op under the policy. Non-retryable errors abort immediately;
// retryable ones are reattempted until MaxAttempts is exhausted, and the
// last error is returned. The context cancels waits between attempts.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	log := logger.FromContextOrDefault(ctx, nil)

	classify := p.Retryable
	if classify == nil {
		classify = IsTransient
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	return retrygo.Do(
		func() error { return op(ctx) },
		retrygo.Context(ctx),
		retrygo.Attempts(uint(attempts)),
		retrygo.Delay(delay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(func(err error) bool {
			return classify(err)
		}),
		retrygo.OnRetry(func(n uint, err error) {
			log.Warn("operation failed, retrying",
				slog.String("operation", name),
				slog.Uint64("attempt", uint64(n)+1),
				slog.Duration("next_delay", delay<<n),
				slog.String("error", err.Error()))
		}),
	)
}

// IsTransient reports whether an error looks like a temporary network or
// connection failure: timeouts, resets, refused connections, truncated
// reads, and TLS handshake hiccups. Context cancellation is never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Provider SDKs often surface connection problems as opaque strings.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"ssl", "tls handshake",
		"connection reset", "connection refused", "broken pipe",
		"timeout", "timed out",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
