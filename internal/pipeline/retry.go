package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultRetryDelay is the fixed wait between the first attempt and the
// single retry.
const DefaultRetryDelay = 2 * time.Second

// ExhaustedError reports that both attempts of a wrapped call failed. It
// wraps the error from the final attempt.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type transienter interface {
	Transient() bool
}

// IsTransient reports whether err is retry-eligible: either a typed error
// declaring itself transient, or a message that reads like a rate limit,
// server error, or timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"internal server error", "bad gateway", "service unavailable",
		"timeout", "deadline exceeded", "connection reset", "connection refused",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry invokes fn once and, on a transient failure, waits delay and
// invokes it exactly once more. There is no backoff and no third attempt:
// under a systemic outage the batch still finishes in bounded time.
// Permanent failures surface immediately.
func WithRetry[T any](ctx context.Context, logger *zap.Logger, op string, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	value, err := fn(ctx)
	if err == nil {
		return value, nil
	}
	logger.Warn("call failed", zap.String("op", op), zap.Int("attempt", 1), zap.Error(err))
	if !IsTransient(err) {
		return value, err
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		var zero T
		return zero, &ExhaustedError{Op: op, Attempts: 1, Err: ctx.Err()}
	}

	value, err = fn(ctx)
	if err == nil {
		logger.Info("retry succeeded", zap.String("op", op), zap.Int("attempt", 2))
		return value, nil
	}
	logger.Warn("call failed", zap.String("op", op), zap.Int("attempt", 2), zap.Error(err))
	var zero T
	return zero, &ExhaustedError{Op: op, Attempts: 2, Err: err}
}
