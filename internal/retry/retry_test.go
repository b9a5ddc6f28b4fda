package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithExponentialBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Fatal("expected success")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestWithExponentialBackoff_RecoversAfterFailures(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(5), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if !result.Success {
		t.Fatalf("expected success, last error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestWithExponentialBackoff_ExhaustsBudget(t *testing.T) {
	wantErr := errors.New("upstream down")
	result := WithExponentialBackoff(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		return wantErr
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if !errors.Is(result.LastError, wantErr) {
		t.Errorf("LastError = %v, want %v", result.LastError, wantErr)
	}
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &Config{
		MaxAttempts:  10,
		InitialDelay: time.Minute, // would block without cancellation
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}

	done := make(chan *Result, 1)
	go func() {
		done <- WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
			return errors.New("always fails")
		})
	}()

	cancel()

	select {
	case result := <-done:
		if result.Success {
			t.Error("expected failure after cancellation")
		}
		if !errors.Is(result.LastError, context.Canceled) {
			t.Errorf("LastError = %v, want context.Canceled", result.LastError)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe context cancellation")
	}
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	cfg := &Config{
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}

	if d := calculateDelay(cfg, 1); d != time.Second {
		t.Errorf("delay(1) = %v, want 1s", d)
	}
	if d := calculateDelay(cfg, 2); d != 2*time.Second {
		t.Errorf("delay(2) = %v, want 2s", d)
	}
	if d := calculateDelay(cfg, 10); d != 4*time.Second {
		t.Errorf("delay(10) = %v, want capped 4s", d)
	}
}

func TestDo_WrapsLastError(t *testing.T) {
	wantErr := errors.New("boom")
	err := Do(context.Background(), fastConfig(2), func(ctx context.Context, attempt int) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want wrapped %v", err, wantErr)
	}
}
