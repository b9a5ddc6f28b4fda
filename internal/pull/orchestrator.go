package pull

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixel-backend/internal/taskstore"
	"github.com/pixel-backend/internal/types"
)

// Orchestrator starts full data pulls. A full pull fans out into one
// child job per resource type; the parent job exists only as a status
// record pointing at its children and is marked completed as soon as
// the fan-out is done. Clients track real progress through the
// children.
type Orchestrator struct {
	queue     *Queue
	store     *taskstore.Store
	batchSize int
	logger    *zap.Logger
}

func NewOrchestrator(queue *Queue, store *taskstore.Store, batchSize int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{queue: queue, store: store, batchSize: batchSize, logger: logger}
}

// StartFullPull enqueues one child job per resource type and returns
// the parent job ID. Each child starts in the pending state; the
// worker pool moves it through running to completed or failed. A
// batchSize of 0 uses the configured default.
func (o *Orchestrator) StartFullPull(ctx context.Context, shop, accessToken string, mode types.PullMode, batchSize int) (string, error) {
	if batchSize <= 0 {
		batchSize = o.batchSize
	}
	parentID := uuid.New().String()
	children := make(map[types.ResourceType]string, len(types.AllResourceTypes()))

	for _, resource := range types.AllResourceTypes() {
		childID := uuid.New().String()
		job := &Job{
			ID:          childID,
			ParentID:    parentID,
			Shop:        shop,
			AccessToken: accessToken,
			Resource:    resource,
			Mode:        mode,
			BatchSize:   batchSize,
			EnqueuedAt:  time.Now().UTC(),
		}

		if err := o.store.SetStatus(ctx, childID, taskstore.Status{State: types.JobPending}); err != nil {
			return "", fmt.Errorf("init status for %s/%s: %w", shop, resource, err)
		}
		if err := o.queue.Enqueue(ctx, job); err != nil {
			return "", fmt.Errorf("enqueue %s/%s: %w", shop, resource, err)
		}
		children[resource] = childID
	}

	if err := o.store.SetStatus(ctx, parentID, taskstore.Status{
		State:    types.JobCompleted,
		Children: children,
	}); err != nil {
		return "", fmt.Errorf("record parent status: %w", err)
	}

	o.logger.Info("started full pull",
		zap.String("shop", shop),
		zap.String("parent_id", parentID),
		zap.String("mode", string(mode)),
		zap.Int("children", len(children)))
	return parentID, nil
}
