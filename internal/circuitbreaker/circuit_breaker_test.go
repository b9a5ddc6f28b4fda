package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(err error) func(ctx context.Context) error {
	return func(ctx context.Context) error { return err }
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("demo", &Config{MaxConsecutiveFailures: 3, Timeout: time.Minute, HalfOpenSuccesses: 1}, nil)
	ctx := context.Background()
	upstreamErr := errors.New("unauthorized")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failing(upstreamErr)); !errors.Is(err, upstreamErr) {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// Open circuit fails fast without calling the function.
	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("open circuit must not call the function")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New("demo", &Config{MaxConsecutiveFailures: 3, Timeout: time.Minute, HalfOpenSuccesses: 1}, nil)
	ctx := context.Background()
	upstreamErr := errors.New("timeout")

	for i := 0; i < 2; i++ {
		cb.Execute(ctx, failing(upstreamErr)) // nolint:errcheck
	}
	if err := cb.Execute(ctx, failing(nil)); err != nil {
		t.Fatalf("success error = %v", err)
	}
	for i := 0; i < 2; i++ {
		cb.Execute(ctx, failing(upstreamErr)) // nolint:errcheck
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (failures are not consecutive)", cb.State())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := New("demo", &Config{MaxConsecutiveFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenSuccesses: 2}, nil)
	ctx := context.Background()

	cb.Execute(ctx, failing(errors.New("boom"))) // nolint:errcheck
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// First probe succeeds: still half-open.
	if err := cb.Execute(ctx, failing(nil)); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half_open after one probe", cb.State())
	}

	// Second probe closes the circuit.
	if err := cb.Execute(ctx, failing(nil)); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("demo", &Config{MaxConsecutiveFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenSuccesses: 2}, nil)
	ctx := context.Background()

	cb.Execute(ctx, failing(errors.New("boom"))) // nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	cb.Execute(ctx, failing(errors.New("still broken"))) // nolint:errcheck
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open again", cb.State())
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)

	a := reg.Get("alpha.myshopify.com")
	b := reg.Get("beta.myshopify.com")
	if a == b {
		t.Error("different names must get different breakers")
	}
	if reg.Get("alpha.myshopify.com") != a {
		t.Error("same name must get the same breaker")
	}
}
