// Package toolrunner provides bounded-parallelism fan-out for batches of
// independent tool invocations (§5: "buffered fan-out over collections of
// tool invocations... typical buffer size 1-100 depending on call site").
package toolrunner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a single unit of fan-out work producing a result of type T.
type Task[T any] func(ctx context.Context) (T, error)

// Run executes tasks with at most `concurrency` running at once,
// returning either every result in input order or the first error
// encountered (the remaining in-flight tasks are cancelled via ctx, per
// errgroup's standard semantics). concurrency <= 0 means unbounded.
//
// Call sites document their own buffer size — e.g. a parallel OpenFile
// prefetch across files named in one LSPDiagnostics response typically
// bounds concurrency to the number of distinct files in that response,
// capped at a small constant so a pathological diagnostic list cannot
// open hundreds of file descriptors at once.
func Run[T any](ctx context.Context, concurrency int, tasks []Task[T]) ([]T, error) {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		group.SetLimit(concurrency)
	}

	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			result, err := task(groupCtx)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunBestEffort behaves like Run but never aborts early: every task runs
// to completion and errors are collected alongside results rather than
// cancelling siblings. Used where a single failed prefetch (e.g. one
// unreadable file among many) should not sink the whole batch.
func RunBestEffort[T any](ctx context.Context, concurrency int, tasks []Task[T]) ([]T, []error) {
	results := make([]T, len(tasks))
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return results, errs
	}

	group := new(errgroup.Group)
	if concurrency > 0 {
		group.SetLimit(concurrency)
	}

	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			result, err := task(ctx)
			results[i] = result
			errs[i] = err
			return nil
		})
	}
	_ = group.Wait()
	return results, errs
}
