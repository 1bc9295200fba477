package faces

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

var errThreadStopped = errors.New("detector thread stopped")

// lockedThread runs jobs one at a time on a goroutine pinned to a single OS
// thread. Native handles are created, used and released only inside jobs;
// callers get plain Go values back.
type lockedThread struct {
	jobs chan func()
	quit chan struct{}
	done chan struct{}
}

// startLockedThread pins a goroutine, runs setup on it and then serves jobs
// until stop. teardown runs on the same thread before it exits.
func startLockedThread(setup func() error, teardown func()) (*lockedThread, error) {
	t := &lockedThread{
		jobs: make(chan func()),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(t.done)

		if setup != nil {
			if err := setup(); err != nil {
				ready <- err
				return
			}
		}
		ready <- nil

		for {
			select {
			case job := <-t.jobs:
				job()
			case <-t.quit:
				if teardown != nil {
					teardown()
				}
				return
			}
		}
	}()

	if err := <-ready; err != nil {
		return nil, err
	}
	return t, nil
}

// do runs fn on the pinned thread and waits for it. When ctx ends first do
// returns ctx.Err(); fn still finishes in the background and its results
// must then be ignored.
func (t *lockedThread) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("native detector panic: %v", r)
			}
		}()
		result <- fn()
	}

	select {
	case t.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return errThreadStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop ends the thread after the running job, if any.
func (t *lockedThread) stop() {
	select {
	case <-t.done:
		return
	default:
	}
	close(t.quit)
	<-t.done
}
