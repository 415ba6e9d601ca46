package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigmabot/pkg/config"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use. When BackoffFor is set it takes precedence.
	Backoff BackoffStrategy
	// BackoffFor picks a strategy from the failed attempt's error
	BackoffFor func(err error) BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits between attempts; defaults to Wait
	Sleep SleepFunc
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// FromSettings builds a Config from the retry configuration section. A
// disabled policy yields a single attempt.
func FromSettings(rc config.RetryConfig, log logger.Logger) *Config {
	attempts := rc.MaxAttempts
	if !rc.Enabled || attempts < 1 {
		attempts = 1
	}

	base := &ExponentialBackoff{
		BaseDelay:    rc.BaseDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.Multiplier,
		JitterFactor: rc.JitterFactor,
	}
	etb := NewErrorTypeBackoff()
	etb.DefaultBackoff = base
	etb.NetworkErrorBackoff = base

	return &Config{
		MaxAttempts: attempts,
		Backoff:     base,
		BackoffFor:  etb.ForError,
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}
}

// DefaultRetryIf retries typed errors whose type is transient and any
// untyped error except context cancellation
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return true
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			if cfg.MaxAttempts == 1 {
				return err
			}
			if cfg.Logger != nil {
				cfg.Logger.WithError(err).WarnWithFields("Max retry attempts exceeded", map[string]interface{}{
					"attempts": attempt,
				})
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		delay := cfg.nextDelay(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).WarnWithFields("Retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"delay":        delay,
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

func (c *Config) nextDelay(attempt int, err error) time.Duration {
	backoff := c.Backoff
	if c.BackoffFor != nil {
		backoff = c.BackoffFor(err)
	}
	if backoff == nil {
		return 0
	}
	return backoff.NextDelay(attempt)
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}

// HTTPRetrier retries HTTP exchanges with a backoff chosen by error type
type HTTPRetrier struct {
	config *Config
}

// NewHTTPRetrier creates a new HTTP-specific retrier
func NewHTTPRetrier(maxAttempts int, log logger.Logger) *HTTPRetrier {
	etb := NewErrorTypeBackoff()
	return &HTTPRetrier{config: &Config{
		MaxAttempts: maxAttempts,
		Backoff:     etb.DefaultBackoff,
		BackoffFor:  etb.ForError,
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}}
}

// NewHTTPRetrierFromConfig wraps an existing Config
func NewHTTPRetrierFromConfig(cfg *Config) *HTTPRetrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &HTTPRetrier{config: cfg}
}

// Do executes op under the retrier's policy
func (hr *HTTPRetrier) Do(ctx context.Context, op Operation) error {
	return Do(ctx, op, hr.config)
}

// WithSleep returns a copy of the retrier using sleep between attempts
func (hr *HTTPRetrier) WithSleep(sleep SleepFunc) *HTTPRetrier {
	cfg := *hr.config
	cfg.Sleep = sleep
	return &HTTPRetrier{config: &cfg}
}

// MaxAttempts returns the configured attempt limit
func (hr *HTTPRetrier) MaxAttempts() int {
	return hr.config.MaxAttempts
}
