// Package pull implements the bulk data pull pipeline: an HTTP-facing
// orchestrator that fans a full pull out into per-resource jobs, a Redis
// list queue carrying those jobs to the worker process, and the worker
// pool that executes them against the platform API.
package pull

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixel-backend/internal/types"
)

// Job is one unit of pull work: fetch every record of one resource type
// for one shop. Jobs are serialized as JSON onto a Redis list so the
// API process and the worker process can run independently.
type Job struct {
	ID          string             `json:"id"`
	ParentID    string             `json:"parent_id"`
	Shop        string             `json:"shop"`
	AccessToken string             `json:"access_token"`
	Resource    types.ResourceType `json:"resource"`
	Mode        types.PullMode     `json:"mode"`
	BatchSize   int                `json:"batch_size"`
	EnqueuedAt  time.Time          `json:"enqueued_at"`
}

// Queue is a Redis-list-backed job queue. LPUSH on the producer side,
// BRPOP on the consumer side, so jobs come off in FIFO order and block
// idle workers without polling.
type Queue struct {
	client         *redis.Client
	key            string
	dequeueTimeout time.Duration
}

func NewQueue(client *redis.Client, key string, dequeueTimeout time.Duration) *Queue {
	return &Queue{client: client, key: key, dequeueTimeout: dequeueTimeout}
}

// Enqueue pushes a job onto the queue.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue blocks up to the configured timeout for the next job. It
// returns (nil, nil) when the timeout elapses with an empty queue so
// callers can check for shutdown between waits.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	res, err := q.client.BRPop(ctx, q.dequeueTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// BRPop returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Len reports the number of jobs waiting in the queue.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
