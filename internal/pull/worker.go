package pull

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pixel-backend/internal/circuitbreaker"
	"github.com/pixel-backend/internal/metrics"
	"github.com/pixel-backend/internal/retry"
	"github.com/pixel-backend/internal/taskstore"
	"github.com/pixel-backend/internal/types"
)

// Fetcher pulls every record of one resource type from the platform.
type Fetcher interface {
	FetchAll(ctx context.Context, resource types.ResourceType, mode types.PullMode, batchSize int) ([]json.RawMessage, error)
}

// ClientFactory builds a Fetcher for one shop's credentials. The worker
// cannot hold a single client because each dequeued job may belong to a
// different shop.
type ClientFactory func(shop, accessToken string) Fetcher

// WorkerPool consumes pull jobs from the queue and executes them. Each
// job is retried with exponential backoff before being marked failed.
type WorkerPool struct {
	queue       *Queue
	store       *taskstore.Store
	newClient   ClientFactory
	workers     int
	retryConfig *retry.Config
	breakers    *circuitbreaker.Registry
	logger      *zap.Logger

	group errgroup.Group
}

func NewWorkerPool(queue *Queue, store *taskstore.Store, factory ClientFactory, workers int, retryConfig *retry.Config, logger *zap.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if retryConfig == nil {
		retryConfig = retry.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		queue:       queue,
		store:       store,
		newClient:   factory,
		workers:     workers,
		retryConfig: retryConfig,
		breakers:    circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), logger),
		logger:      logger,
	}
}

// Start launches the worker goroutines. They run until ctx is
// cancelled; call Wait to block until they drain.
func (p *WorkerPool) Start(ctx context.Context) {
	p.group.SetLimit(p.workers)
	for i := 0; i < p.workers; i++ {
		id := i
		p.group.Go(func() error {
			p.run(ctx, id)
			return nil
		})
	}
}

// Wait blocks until every worker has exited.
func (p *WorkerPool) Wait() {
	// Workers never return an error; they exit on ctx cancellation.
	_ = p.group.Wait()
}

func (p *WorkerPool) run(ctx context.Context, workerID int) {
	logger := p.logger.With(zap.Int("worker_id", workerID))
	logger.Info("pull worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("pull worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("pull worker stopping")
				return
			}
			logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, logger, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, logger *zap.Logger, job *Job) {
	logger = logger.With(
		zap.String("job_id", job.ID),
		zap.String("shop", job.Shop),
		zap.String("resource", string(job.Resource)))

	if err := p.store.SetStatus(ctx, job.ID, taskstore.Status{State: types.JobRunning}); err != nil {
		logger.Error("failed to mark job running", zap.Error(err))
	}

	start := time.Now()
	client := p.newClient(job.Shop, job.AccessToken)
	// One breaker per (shop, resource): siblings of a failing child keep
	// their own fetch budget.
	breaker := p.breakers.Get(job.Shop + "/" + string(job.Resource))

	var records []json.RawMessage
	result := retry.WithExponentialBackoff(ctx, p.retryConfig, func(ctx context.Context, attempt int) error {
		err := breaker.Execute(ctx, func(ctx context.Context) error {
			var ferr error
			records, ferr = client.FetchAll(ctx, job.Resource, job.Mode, job.BatchSize)
			return ferr
		})
		if err != nil {
			logger.Warn("fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})

	duration := time.Since(start)
	metrics.PullJobDuration.WithLabelValues(string(job.Resource)).Observe(duration.Seconds())

	if !result.Success {
		metrics.PullJobs.WithLabelValues(string(job.Resource), string(types.JobFailed)).Inc()
		detail := "fetch failed"
		if result.LastError != nil {
			detail = result.LastError.Error()
		}
		if err := p.store.SetStatus(ctx, job.ID, taskstore.Status{State: types.JobFailed, Detail: detail}); err != nil {
			logger.Error("failed to mark job failed", zap.Error(err))
		}
		logger.Error("pull job failed",
			zap.Int("attempts", result.Attempts),
			zap.Duration("duration", duration),
			zap.Error(result.LastError))
		return
	}

	if err := p.store.SetResult(ctx, job.Shop, job.ID, job.Resource, records); err != nil {
		metrics.PullJobs.WithLabelValues(string(job.Resource), string(types.JobFailed)).Inc()
		if serr := p.store.SetStatus(ctx, job.ID, taskstore.Status{State: types.JobFailed, Detail: "failed to store result"}); serr != nil {
			logger.Error("failed to mark job failed", zap.Error(serr))
		}
		logger.Error("failed to store pull result", zap.Error(err))
		return
	}

	metrics.PullJobs.WithLabelValues(string(job.Resource), string(types.JobCompleted)).Inc()
	if err := p.store.SetStatus(ctx, job.ID, taskstore.Status{State: types.JobCompleted}); err != nil {
		logger.Error("failed to mark job completed", zap.Error(err))
	}
	logger.Info("pull job completed",
		zap.Int("records", len(records)),
		zap.Int("attempts", result.Attempts),
		zap.Duration("duration", duration))
}
