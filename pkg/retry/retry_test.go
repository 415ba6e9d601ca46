package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"sigmabot/pkg/config"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
)

// recordSleep captures delays without waiting
func recordSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("Attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("Delay %v outside jitter bounds", delay)
		}
		delays[delay] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Sleep:       recordSleep(&delays),
	}

	if err := Do(context.Background(), op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Errorf("Expected 2 sleeps, got %d", len(delays))
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	persistent := errors.New("persistent error")

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Sleep:       recordSleep(&delays),
		Logger:      logger.NewNopLogger(),
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return persistent
	}, cfg)
	if !errors.Is(err, persistent) {
		t.Errorf("Expected wrapped persistent error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Errorf("Expected no sleep after the final attempt, got %d sleeps", len(delays))
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := errs.New(errs.ErrorTypeAuth, 401, "authentication required")

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     DefaultRetryIf,
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return authError
	}, cfg)
	if err != authError {
		t.Errorf("Expected auth error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for auth error), got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     func(err error) bool { return true },
	}

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("error")
	}, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "reset"), true},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, 429, "slow down"), true},
		{"server", errs.New(errs.ErrorTypeServerError, 503, "unavailable"), true},
		{"media too large", errs.New(errs.ErrorTypeMediaTooLarge, 413, "too big"), false},
		{"rejected", errs.New(errs.ErrorTypeRejected, 400, "duplicate"), false},
		{"untyped", errors.New("eof"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff()

	eb, ok := etb.BackoffFor(errs.ErrorTypeNetwork).(*ExponentialBackoff)
	if !ok || eb.BaseDelay != 1*time.Second {
		t.Errorf("Expected network exponential backoff with 1s base, got %#v", etb.BackoffFor(errs.ErrorTypeNetwork))
	}

	eb, ok = etb.ForError(errs.New(errs.ErrorTypeRateLimit, 429, "slow")).(*ExponentialBackoff)
	if !ok || eb.BaseDelay != 30*time.Second {
		t.Errorf("Expected rate limit base delay of 30s")
	}

	if etb.ForError(errors.New("plain")) != etb.DefaultBackoff {
		t.Error("Expected default backoff for untyped errors")
	}
}

func TestHTTPRetrierUsesErrorTypeBackoff(t *testing.T) {
	var delays []time.Duration
	retrier := NewHTTPRetrier(3, logger.NewNopLogger()).WithSleep(recordSleep(&delays))

	attempts := 0
	err := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if len(delays) != 1 || delays[0] < 21*time.Second {
		t.Errorf("Expected one rate limit sized delay, got %v", delays)
	}
}

func TestFromSettings(t *testing.T) {
	rc := config.DefaultConfig().Retry
	cfg := FromSettings(rc, logger.NewNopLogger())
	if cfg.MaxAttempts != rc.MaxAttempts {
		t.Errorf("Expected %d attempts, got %d", rc.MaxAttempts, cfg.MaxAttempts)
	}

	rc.Enabled = false
	if got := FromSettings(rc, nil).MaxAttempts; got != 1 {
		t.Errorf("Expected a single attempt when disabled, got %d", got)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	var delays []time.Duration

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Sleep:       recordSleep(&delays),
	}

	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}, cfg)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
