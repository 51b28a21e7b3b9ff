// Package slices2 has slice helpers not found in the standard library.
package slices2

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ParMapErr maps fn over xs in parallel, bounded by sem.
// The first error from fn is returned; a cancelled Acquire never shadows it.
func ParMapErr[X, Y any](ctx context.Context, sem *semaphore.Weighted, xs []X, fn func(ctx context.Context, x X) (Y, error)) ([]Y, error) {
	ys := make([]Y, len(xs))
	eg, ctx := errgroup.WithContext(ctx)
	var acquireErr error
	for i := range xs {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			y, err := fn(ctx, xs[i])
			if err != nil {
				return err
			}
			ys[i] = y
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if acquireErr != nil {
		return nil, acquireErr
	}
	return ys, nil
}
