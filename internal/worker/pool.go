// Package worker runs CPU-bound jobs such as feature extraction on a
// bounded number of goroutines.
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many jobs run at once. It is safe for concurrent use.
type Pool struct {
	sem chan struct{}
}

// New returns a pool running at most limit jobs. A non-positive limit
// uses runtime.NumCPU().
func New(limit int) *Pool {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &Pool{sem: make(chan struct{}, limit)}
}

// Limit returns the maximum number of concurrent jobs.
func (p *Pool) Limit() int { return cap(p.sem) }

// Do runs fn on the pool and waits for it. If ctx ends first, Do returns
// ctx.Err() straight away; fn keeps its slot until it returns and its
// result is dropped.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-p.sem }()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Each calls fn for i in [0, n) on the pool and returns one error slot
// per index. A failing item does not stop the others; a cancelled ctx
// marks the items that had not started yet with ctx.Err().
func (p *Pool) Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Limit())
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				errs[j] = err
			}
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = p.Do(gctx, func() error { return fn(gctx, i) })
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
