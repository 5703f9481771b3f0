// Package pool runs the per-item work of bulk storage operations on a
// bounded goroutine pool.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kartikbazzad/filedb/internal/logger"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/panjf2000/ants/v2"
)

// Pool bounds the number of concurrent per-item operations.
type Pool struct {
	workers *ants.Pool
	logger  *logger.Logger
}

// New creates a pool with size workers.
func New(size int, log *logger.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{logger: log}
	workers, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		log.Error("pool task panic", "panic", v)
	}), ants.WithExpiryDuration(time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.workers = workers
	return p, nil
}

// Cap returns the pool size.
func (p *Pool) Cap() int {
	return p.workers.Cap()
}

// Release stops the workers, waiting up to timeout for running tasks.
func (p *Pool) Release(timeout time.Duration) error {
	return p.workers.ReleaseTimeout(timeout)
}

// Map runs fn for every index in [0, n) concurrently and returns the results
// in input order. The first failure cancels the items that have not started
// yet and is returned as a *dberrors.AggregateError; items that already
// finished keep their side effects.
func Map[T any](ctx context.Context, p *Pool, op string, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	if n == 0 {
		return results, nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(i int, err error) {
		once.Do(func() {
			firstErr = &dberrors.AggregateError{Op: op, Index: i, Err: err}
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(i, fmt.Errorf("panic: %v", r))
				}
			}()
			if ctx.Err() != nil {
				return
			}
			v, err := fn(ctx, i)
			if err != nil {
				fail(i, err)
				return
			}
			results[i] = v
		}
		if err := p.workers.Submit(task); err != nil {
			wg.Done()
			fail(i, err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		p.logger.Debug("bulk operation failed", "op", op, "error", firstErr)
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
