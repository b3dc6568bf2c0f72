// Package task manages the goroutines behind a master session or a slave
// server: the frame reader, the protocol loop and the push delivery loop.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-slink/logger"
)

// ErrStopped is returned when starting a task on a stopped Manager.
var ErrStopped = errors.New("task: manager already stopped")

// LoopFunc is one iteration of a task loop. Returning false ends the task.
type LoopFunc func(ctx context.Context) bool

// Manager starts named goroutines bound to a shared context and waits for
// them to finish.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("reader", func(ctx context.Context) bool {
//	    // ... one iteration ...
//	    return true
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
}

// NewManager creates a Manager whose tasks stop when ctx is cancelled or
// Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by all tasks.
func (mgr *Manager) Context() context.Context {
	return mgr.ctx
}

// Start runs fn repeatedly in a new goroutine until it returns false or the
// manager is stopped. A panic in fn ends the task and is logged.
func (mgr *Manager) Start(name string, fn LoopFunc) error {
	if mgr.ctx.Err() != nil {
		return fmt.Errorf("%w: cannot start %s", ErrStopped, name)
	}

	mgr.logger.Debug("start task", "name", name)

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.Count())
		}()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
			}

			if !fn(mgr.ctx) {
				return
			}
		}
	}()

	return nil
}

// Stop signals all running tasks to stop.
func (mgr *Manager) Stop() {
	mgr.cancel()
}

// Wait waits for all tasks to terminate.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
