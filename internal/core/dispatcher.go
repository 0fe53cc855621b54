package core

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultDispatchInterval is the stagger between consecutive row starts.
const DefaultDispatchInterval = 100 * time.Millisecond

// Dispatch runs task once for each position 0..n-1. Position i starts no
// earlier than i*interval after the call; once started a task runs to
// completion without waiting on any other.
//
// The first task error stops positions that have not started yet and is
// returned once every started task has finished. Tasks already in flight are
// not interrupted. If ctx ends first, unstarted positions are skipped and
// ctx.Err() is returned.
func Dispatch(ctx context.Context, n int, interval time.Duration, task func(ctx context.Context, i int) error) error {
	var g errgroup.Group
	failed := make(chan struct{})
	var report sync.Once

	start := time.Now()
	var ctxErr error

dispatch:
	for i := 0; i < n; i++ {
		if wait := time.Until(start.Add(time.Duration(i) * interval)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-failed:
				timer.Stop()
				break dispatch
			case <-ctx.Done():
				timer.Stop()
			}
		}
		select {
		case <-failed:
			break dispatch
		default:
		}
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}

		g.Go(func() error {
			err := task(ctx, i)
			if err != nil {
				report.Do(func() { close(failed) })
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctxErr
}
