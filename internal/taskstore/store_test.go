package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pixel-backend/internal/types"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, 24*time.Hour, time.Hour), mr
}

func TestStatusRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	status := Status{
		State: types.JobCompleted,
		Children: map[types.ResourceType]string{
			types.ResourceCustomers: "child-1",
			types.ResourceProducts:  "child-2",
		},
	}
	if err := store.SetStatus(ctx, "job-1", status); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, err := store.GetStatus(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.State != types.JobCompleted {
		t.Errorf("State = %q, want completed", got.State)
	}
	if got.Children[types.ResourceCustomers] != "child-1" {
		t.Errorf("Children = %v", got.Children)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped on write")
	}
}

func TestGetStatus_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetStatus(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSetStatus_Overwrite(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SetStatus(ctx, "job-1", Status{State: types.JobPending}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := store.SetStatus(ctx, "job-1", Status{State: types.JobFailed, Detail: "boom"}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, err := store.GetStatus(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.State != types.JobFailed || got.Detail != "boom" {
		t.Errorf("got %+v, want failed/boom", got)
	}
}

func TestResultRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	records := []json.RawMessage{
		json.RawMessage(`{"id":"c1"}`),
		json.RawMessage(`{"id":"c2"}`),
	}
	if err := store.SetResult(ctx, "demo.myshopify.com", "job-1", types.ResourceCustomers, records); err != nil {
		t.Fatalf("SetResult() error = %v", err)
	}

	got, err := store.GetResult(ctx, "demo.myshopify.com", "job-1", types.ResourceCustomers)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if string(got[0]) != `{"id":"c1"}` {
		t.Errorf("record order not preserved: %s", got[0])
	}
}

func TestGetResult_ScopedByShopAndResource(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	records := []json.RawMessage{json.RawMessage(`{"id":"p1"}`)}
	if err := store.SetResult(ctx, "alpha.myshopify.com", "job-1", types.ResourceProducts, records); err != nil {
		t.Fatalf("SetResult() error = %v", err)
	}

	if _, err := store.GetResult(ctx, "beta.myshopify.com", "job-1", types.ResourceProducts); !errors.Is(err, ErrNotFound) {
		t.Errorf("other shop should not see the result, got %v", err)
	}
	if _, err := store.GetResult(ctx, "alpha.myshopify.com", "job-1", types.ResourceOrders); !errors.Is(err, ErrNotFound) {
		t.Errorf("other resource should not see the result, got %v", err)
	}
}

func TestTTLs(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SetStatus(ctx, "job-1", Status{State: types.JobCompleted}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := store.SetResult(ctx, "demo.myshopify.com", "job-1", types.ResourceCustomers, nil); err != nil {
		t.Fatalf("SetResult() error = %v", err)
	}

	// Results expire first; statuses remain queryable for a day.
	mr.FastForward(2 * time.Hour)

	if _, err := store.GetResult(ctx, "demo.myshopify.com", "job-1", types.ResourceCustomers); !errors.Is(err, ErrNotFound) {
		t.Errorf("result should have expired, got %v", err)
	}
	if _, err := store.GetStatus(ctx, "job-1"); err != nil {
		t.Errorf("status should still exist after 2h, got %v", err)
	}

	mr.FastForward(23 * time.Hour)
	if _, err := store.GetStatus(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("status should have expired after 25h, got %v", err)
	}
}
