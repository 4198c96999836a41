package backtest

import (
	"context"
	"runtime"

	"github.com/newthinker/novaquant/internal/core"
	"golang.org/x/sync/errgroup"
)

// runIndexed calls fn for every index in [0, n) on at most workers goroutines
// and stores each result in its own slot, so output order never depends on
// completion order. Once ctx is done or a cell fails, no further cells start;
// cells already running finish.
func runIndexed[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, core.FromContext(ctx.Err())
		}
		return nil, core.FromContext(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, core.FromContext(err)
	}
	return out, nil
}
