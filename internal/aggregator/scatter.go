package aggregator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// outcome is the settled result of one fanned-out call.
type outcome[I, T any] struct {
	item  I
	value T
	err   error
}

// scatter calls fn once per item, all concurrently unless limit > 0, and streams every outcome
// in completion order. The channel is closed after the last call settles. A failing call never
// cancels its siblings.
func scatter[I, T any](ctx context.Context, limit int, items []I, fn func(context.Context, I) (T, error)) <-chan outcome[I, T] {
	results := make(chan outcome[I, T], len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	go func() {
		for _, item := range items {
			g.Go(func() error {
				value, err := fn(ctx, item)
				// nil keeps the group from cancelling the remaining calls
				results <- outcome[I, T]{item: item, value: value, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	return results
}
