package pull

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pixel-backend/internal/retry"
	"github.com/pixel-backend/internal/taskstore"
	"github.com/pixel-backend/internal/types"
)

func newTestQueue(t *testing.T) (*Queue, *taskstore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	queue := NewQueue(client, "pull:queue", 100*time.Millisecond)
	store := taskstore.New(client, 24*time.Hour, time.Hour)
	return queue, store
}

func TestQueue_FIFO(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := &Job{ID: fmt.Sprintf("job-%d", i), Resource: types.ResourceCustomers}
		if err := queue.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		job, err := queue.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if job == nil {
			t.Fatal("Dequeue() returned nil with jobs waiting")
		}
		if want := fmt.Sprintf("job-%d", i); job.ID != want {
			t.Errorf("job %d: ID = %q, want %q", i, job.ID, want)
		}
	}
}

func TestQueue_DequeueTimeout(t *testing.T) {
	queue, _ := newTestQueue(t)

	job, err := queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if job != nil {
		t.Errorf("empty queue should yield nil job, got %+v", job)
	}
}

func TestStartFullPull(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	orch := NewOrchestrator(queue, store, 50, nil)
	parentID, err := orch.StartFullPull(ctx, "demo.myshopify.com", "tok", types.PullModeCursor, 0)
	if err != nil {
		t.Fatalf("StartFullPull() error = %v", err)
	}

	parent, err := store.GetStatus(ctx, parentID)
	if err != nil {
		t.Fatalf("GetStatus(parent) error = %v", err)
	}
	if parent.State != types.JobCompleted {
		t.Errorf("parent state = %q, want completed", parent.State)
	}
	if len(parent.Children) != len(types.AllResourceTypes()) {
		t.Fatalf("parent has %d children, want %d", len(parent.Children), len(types.AllResourceTypes()))
	}

	seen := make(map[types.ResourceType]bool)
	for i := 0; i < len(types.AllResourceTypes()); i++ {
		job, err := queue.Dequeue(ctx)
		if err != nil || job == nil {
			t.Fatalf("Dequeue() = %v, %v", job, err)
		}
		if job.ParentID != parentID {
			t.Errorf("job %s parent = %q, want %q", job.ID, job.ParentID, parentID)
		}
		if job.BatchSize != 50 {
			t.Errorf("job batch size = %d, want 50", job.BatchSize)
		}
		if parent.Children[job.Resource] != job.ID {
			t.Errorf("parent children map does not point at job %s for %s", job.ID, job.Resource)
		}
		child, err := store.GetStatus(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetStatus(child) error = %v", err)
		}
		if child.State != types.JobPending {
			t.Errorf("child %s state = %q, want pending", job.ID, child.State)
		}
		seen[job.Resource] = true
	}
	for _, resource := range types.AllResourceTypes() {
		if !seen[resource] {
			t.Errorf("no job enqueued for resource %s", resource)
		}
	}
}

// fakeFetcher scripts FetchAll per resource type.
type fakeFetcher struct {
	records map[types.ResourceType][]json.RawMessage
	errs    map[types.ResourceType]error
	// failures counts down transient errors before success
	failures map[types.ResourceType]*int
}

func (f *fakeFetcher) FetchAll(ctx context.Context, resource types.ResourceType, mode types.PullMode, batchSize int) ([]json.RawMessage, error) {
	if n, ok := f.failures[resource]; ok && *n > 0 {
		*n--
		return nil, errors.New("transient platform error")
	}
	if err, ok := f.errs[resource]; ok {
		return nil, err
	}
	return f.records[resource], nil
}

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func runPool(t *testing.T, queue *Queue, store *taskstore.Store, fetcher Fetcher, workers int, retryConfig *retry.Config) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	factory := func(shop, accessToken string) Fetcher { return fetcher }
	pool := NewWorkerPool(queue, store, factory, workers, retryConfig, nil)
	pool.Start(ctx)

	// Let the pool drain the queue, then stop it.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := queue.Len(ctx)
		if err != nil {
			t.Fatalf("Len() error = %v", err)
		}
		if n == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	cancel()
	pool.Wait()
}

func TestWorkerPool_CompletesJobs(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	orch := NewOrchestrator(queue, store, 100, nil)
	parentID, err := orch.StartFullPull(ctx, "demo.myshopify.com", "tok", types.PullModeCursor, 0)
	if err != nil {
		t.Fatalf("StartFullPull() error = %v", err)
	}

	fetcher := &fakeFetcher{records: map[types.ResourceType][]json.RawMessage{
		types.ResourceCustomers: {json.RawMessage(`{"id":"c1"}`), json.RawMessage(`{"id":"c2"}`)},
		types.ResourceProducts:  {json.RawMessage(`{"id":"p1"}`)},
		types.ResourceOrders:    {},
	}}
	runPool(t, queue, store, fetcher, 2, fastRetry())

	parent, err := store.GetStatus(ctx, parentID)
	if err != nil {
		t.Fatalf("GetStatus(parent) error = %v", err)
	}
	for resource, childID := range parent.Children {
		child, err := store.GetStatus(ctx, childID)
		if err != nil {
			t.Fatalf("GetStatus(%s) error = %v", childID, err)
		}
		if child.State != types.JobCompleted {
			t.Errorf("child %s state = %q, want completed (detail: %s)", resource, child.State, child.Detail)
		}
	}

	// Results live under the child's own id.
	customers, err := store.GetResult(ctx, "demo.myshopify.com", parent.Children[types.ResourceCustomers], types.ResourceCustomers)
	if err != nil {
		t.Fatalf("GetResult(customers) error = %v", err)
	}
	if len(customers) != 2 || string(customers[0]) != `{"id":"c1"}` {
		t.Errorf("customers result = %v", customers)
	}
	if _, err := store.GetResult(ctx, "demo.myshopify.com", parentID, types.ResourceCustomers); !errors.Is(err, taskstore.ErrNotFound) {
		t.Errorf("parent id must not address a result directly, got %v", err)
	}
}

func TestWorkerPool_RetriesTransientFailures(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	failures := 2
	fetcher := &fakeFetcher{
		records:  map[types.ResourceType][]json.RawMessage{types.ResourceCustomers: {json.RawMessage(`{"id":"c1"}`)}},
		failures: map[types.ResourceType]*int{types.ResourceCustomers: &failures},
	}

	job := &Job{ID: "child-1", ParentID: "parent-1", Shop: "demo.myshopify.com", Resource: types.ResourceCustomers, Mode: types.PullModeCursor, BatchSize: 10}
	if err := queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	runPool(t, queue, store, fetcher, 2, fastRetry())

	status, err := store.GetStatus(ctx, "child-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.State != types.JobCompleted {
		t.Errorf("state = %q, want completed after retries (detail: %s)", status.State, status.Detail)
	}
	if failures != 0 {
		t.Errorf("expected both transient failures consumed, %d left", failures)
	}
}

func TestWorkerPool_MarksJobFailed(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{errs: map[types.ResourceType]error{
		types.ResourceOrders: errors.New("access denied"),
	}}

	job := &Job{ID: "child-1", ParentID: "parent-1", Shop: "demo.myshopify.com", Resource: types.ResourceOrders, Mode: types.PullModeCursor, BatchSize: 10}
	if err := queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	runPool(t, queue, store, fetcher, 2, fastRetry())

	status, err := store.GetStatus(ctx, "child-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.State != types.JobFailed {
		t.Errorf("state = %q, want failed", status.State)
	}
	if status.Detail == "" {
		t.Error("failed job should carry an error detail")
	}

	if _, err := store.GetResult(ctx, "demo.myshopify.com", "child-1", types.ResourceOrders); !errors.Is(err, taskstore.ErrNotFound) {
		t.Errorf("failed job must not leave a result, got %v", err)
	}
}

func TestWorkerPool_FailingChildDoesNotAffectSiblings(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{
		records: map[types.ResourceType][]json.RawMessage{
			types.ResourceCustomers: {json.RawMessage(`{"id":"c1"}`)},
		},
		errs: map[types.ResourceType]error{
			types.ResourceOrders: errors.New("access denied"),
		},
	}

	// One worker and enough retry attempts to trip a breaker: the orders
	// job burns through every attempt before customers is picked up.
	retryConfig := &retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
	orders := &Job{ID: "orders-1", ParentID: "parent-1", Shop: "demo.myshopify.com", Resource: types.ResourceOrders, Mode: types.PullModeCursor, BatchSize: 10}
	customers := &Job{ID: "customers-1", ParentID: "parent-1", Shop: "demo.myshopify.com", Resource: types.ResourceCustomers, Mode: types.PullModeCursor, BatchSize: 10}
	for _, job := range []*Job{orders, customers} {
		if err := queue.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", job.ID, err)
		}
	}
	runPool(t, queue, store, fetcher, 1, retryConfig)

	status, err := store.GetStatus(ctx, "orders-1")
	if err != nil {
		t.Fatalf("GetStatus(orders) error = %v", err)
	}
	if status.State != types.JobFailed {
		t.Errorf("orders state = %q, want failed", status.State)
	}

	status, err = store.GetStatus(ctx, "customers-1")
	if err != nil {
		t.Fatalf("GetStatus(customers) error = %v", err)
	}
	if status.State != types.JobCompleted {
		t.Errorf("customers state = %q, want completed (detail: %s)", status.State, status.Detail)
	}
}
