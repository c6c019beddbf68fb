package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Throttle runs action for every item with at most limit goroutines at a
// time and waits for all of them. A limit below 1 means no limit. The first
// error cancels ctx for the remaining actions and is returned.
func Throttle[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		g.Go(func() error {
			return action(ctx, item)
		})
	}
	return g.Wait()
}
