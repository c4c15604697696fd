package bankclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one call in a Batch.
type Outcome[T any] struct {
	Success bool
	Data    T
	Err     error
}

// Batch runs calls concurrently and waits for all of them. Results are returned
// in input order. A failing call never cancels its siblings.
func Batch[T any](ctx context.Context, calls ...func(context.Context) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(calls))
	var group errgroup.Group
	for i, call := range calls {
		i, call := i, call
		group.Go(func() error {
			data, err := call(ctx)
			if err != nil {
				outcomes[i] = Outcome[T]{Err: err}
				return nil
			}
			outcomes[i] = Outcome[T]{Success: true, Data: data}
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}
