// Package task manages the goroutines of a server: accept loops that run until told to stop,
// and one-shot connection handlers. Every goroutine is recovered from panics and accounted
// so that shutdown can wait for all of them.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-modbus/internal/pool"
	"github.com/arloliu/go-modbus/logger"
)

// ErrStopped is returned when a task is started on a stopped Manager.
var ErrStopped = errors.New("task manager already stopped")

// LoopFunc is the body of a looping task.
// It should return true to run again, or false to stop the goroutine.
type LoopFunc func() bool

// RunFunc is the body of a one-shot task. ctx is cancelled when the Manager stops.
type RunFunc func(ctx context.Context)

// ExitFunc is called when a task goroutine exits, normally or by panic.
type ExitFunc func()

// Manager manages the lifecycle of goroutines.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//
//	_ = mgr.Start("accept", func() bool {
//	    // ... accept one connection ...
//	    return true
//	})
//
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager with ctx as the parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a goroutine that calls loopFunc until it returns false or the Manager stops.
func (mgr *Manager) Start(name string, loopFunc LoopFunc) error {
	mgr.logger.Debug("start task", "name", name)

	return mgr.spawn(name, nil, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if !loopFunc() {
					return
				}
			}
		}
	})
}

// Go starts a goroutine that calls runFunc once. exitFunc, when not nil, is always called
// after runFunc returns or panics.
func (mgr *Manager) Go(name string, runFunc RunFunc, exitFunc ExitFunc) error {
	return mgr.spawn(name, exitFunc, runFunc)
}

func (mgr *Manager) spawn(name string, exitFunc ExitFunc, body RunFunc) error {
	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	ctx := mgr.Context()
	select {
	case <-ctx.Done():
		if exitFunc != nil {
			exitFunc()
		}

		return fmt.Errorf("start %s: %w", name, ErrStopped)
	default:
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer mgr.wg.Done()
		defer mgr.count.Add(-1)
		if exitFunc != nil {
			defer exitFunc()
		}
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}
		}()

		body(ctx)
	}()

	return nil
}

// Stop signals all running goroutines. Tasks started afterwards fail with ErrStopped
// until Wait returns.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate, then re-arms the Manager.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// WaitTimeout is like Wait but gives up after d. It reports whether all goroutines terminated.
//
// On timeout the Manager is not re-armed and the remaining goroutines keep running.
func (mgr *Manager) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-done:
		return true
	case <-timer.C:
		mgr.logger.Warn("timeout waiting for tasks", "task_count", mgr.Count())
		return false
	}
}

// Count returns the number of currently running goroutines.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
