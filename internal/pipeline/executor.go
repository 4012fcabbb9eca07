// Package pipeline implements the multi-phase concurrent ticket-analysis
// pipeline: a bounded executor, a single-retry client wrapper, the fetch,
// synthesis, classification, and capability stages, and the orchestrator
// that sequences them into a batch report.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is one item's outcome from a bounded run, positioned at the item's
// input index regardless of completion order.
type Result[T any] struct {
	Value T
	Err   error
}

// Progress is invoked synchronously after each item completes, success or
// failure. It only drives terminal feedback and must stay cheap.
type Progress func(completed, total int)

// RunBounded executes op over every item with at most limit operations in
// flight. One item's failure (or panic) never cancels its siblings; it is
// captured into that item's Result.
func RunBounded[I, O any](ctx context.Context, items []I, limit int, op func(context.Context, I) (O, error), progress Progress) []Result[O] {
	if limit < 1 {
		limit = 1
	}
	results := make([]Result[O], len(items))

	var mu sync.Mutex
	completed := 0

	g := &errgroup.Group{}
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			func() {
				defer func() {
					if r := recover(); r != nil {
						results[i] = Result[O]{Err: fmt.Errorf("panic during item processing: %v", r)}
					}
				}()
				value, err := op(ctx, item)
				results[i] = Result[O]{Value: value, Err: err}
			}()

			if progress != nil {
				mu.Lock()
				completed++
				progress(completed, len(items))
				mu.Unlock()
			}
			return nil
		})
	}
	// Item errors are captured per slot; the group itself never fails.
	_ = g.Wait()
	return results
}
