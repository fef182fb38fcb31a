// Package retry runs calls to flaky remote services with bounded exponential
// backoff. Only connection-level failures are retried.
package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

var (
	retryMeter      = otel.Meter("finance-ingest/retry")
	retryCount, _   = retryMeter.Int64Counter("retry.attempts", metric.WithDescription("Retried calls by operation"))
	retryExhaust, _ = retryMeter.Int64Counter("retry.exhausted", metric.WithDescription("Calls that failed after every attempt"))
)

// Policy bounds the retries. Attempt n (1-based) waits BaseDelay * 2^(n-1)
// before attempt n+1.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three attempts starting at five seconds.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second}
}

// FromConfig builds a policy from the retry settings.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay}
}

// Delay returns the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// ExhaustedError is returned once every attempt failed with a retryable
// error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts.
func Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		last = err
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Int("max_attempts", attempts).Dur("retry_in", delay).Msg("retryable failure")
		retryCount.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Error().Err(last).Str("op", op).Int("attempts", attempts).Msg("retries exhausted")
	retryExhaust.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	return &ExhaustedError{Op: op, Attempts: attempts, Err: last}
}

// IsRetryable reports whether err is a connection, timeout or TLS failure,
// or was explicitly marked transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if domain.IsTransient(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"tls handshake", "connection reset", "connection refused", "broken pipe", "unexpected eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
