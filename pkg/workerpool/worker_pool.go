package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent work items (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
	}
}

// WorkerPool runs detection work with bounded parallelism. The bound is
// held by the pool, so concurrent Process calls sharing one pool together
// never run more than MaxConcurrent items.
type WorkerPool struct {
	config Config
	slots  chan struct{}
	logger *zap.Logger
}

// New creates a new worker pool.
func New(config Config, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &WorkerPool{
		config: config,
		slots:  make(chan struct{}, config.MaxConcurrent),
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *WorkerPool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all work items and returns their results in submission
// order. A failing item does not stop the others; items still waiting for a
// slot when ctx is cancelled report ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runItem(ctx, pool, item)

			if onProgress != nil {
				mu.Lock()
				completed++
				onProgress(completed, len(items))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return results
}

// runItem waits for a pool slot and executes one item.
func runItem[T any](ctx context.Context, pool *WorkerPool, item WorkItem[T]) WorkResult[T] {
	select {
	case pool.slots <- struct{}{}:
		defer func() { <-pool.slots }()
	case <-ctx.Done():
		return WorkResult[T]{ID: item.ID, Err: ctx.Err()}
	}

	if err := ctx.Err(); err != nil {
		return WorkResult[T]{ID: item.ID, Err: err}
	}

	result, err := item.Execute(ctx)
	if err != nil {
		pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(err))
	}
	return WorkResult[T]{ID: item.ID, Result: result, Err: err}
}

// ProcessOrdered returns the results of all items in submission order, or
// the first error in submission order.
func ProcessOrdered[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
) ([]T, error) {
	results := Process(ctx, pool, items, nil)

	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		out = append(out, r.Result)
	}
	return out, nil
}
