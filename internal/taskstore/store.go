package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixel-backend/internal/types"
)

// ErrNotFound is returned when no status or result exists for a key,
// either because it was never written or because its TTL expired.
var ErrNotFound = errors.New("taskstore: not found")

// Status is the queryable state of a pull job. Parent jobs carry the
// Children map (resource type to child job ID); child jobs carry the
// per-resource progress.
type Status struct {
	State     types.JobState                `json:"state"`
	Detail    string                        `json:"detail,omitempty"`
	Children  map[types.ResourceType]string `json:"children,omitempty"`
	UpdatedAt time.Time                     `json:"updated_at"`
}

// Store persists pull job statuses and fetched results in Redis with
// independent TTLs. Statuses outlive results so a client can still
// learn that a job completed after its payload has expired.
type Store struct {
	client    *redis.Client
	statusTTL time.Duration
	resultTTL time.Duration
}

func New(client *redis.Client, statusTTL, resultTTL time.Duration) *Store {
	return &Store{client: client, statusTTL: statusTTL, resultTTL: resultTTL}
}

func statusKey(jobID string) string {
	return "pull:status:" + jobID
}

func resultKey(shop, jobID string, resource types.ResourceType) string {
	return fmt.Sprintf("pull:result:%s:%s:%s", shop, jobID, resource)
}

// SetStatus writes the status for a job, stamping UpdatedAt.
func (s *Store) SetStatus(ctx context.Context, jobID string, status Status) error {
	status.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(jobID), data, s.statusTTL).Err(); err != nil {
		return fmt.Errorf("set status %s: %w", jobID, err)
	}
	return nil
}

// GetStatus returns the status for a job, or ErrNotFound.
func (s *Store) GetStatus(ctx context.Context, jobID string) (*Status, error) {
	data, err := s.client.Get(ctx, statusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status %s: %w", jobID, err)
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal status %s: %w", jobID, err)
	}
	return &status, nil
}

// SetResult stores the fetched records for one (shop, job, resource).
func (s *Store) SetResult(ctx context.Context, shop, jobID string, resource types.ResourceType, records []json.RawMessage) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := resultKey(shop, jobID, resource)
	if err := s.client.Set(ctx, key, data, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("set result %s: %w", key, err)
	}
	return nil
}

// GetResult returns the stored records, or ErrNotFound once the result
// TTL has passed.
func (s *Store) GetResult(ctx context.Context, shop, jobID string, resource types.ResourceType) ([]json.RawMessage, error) {
	key := resultKey(shop, jobID, resource)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", key, err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal result %s: %w", key, err)
	}
	return records, nil
}
