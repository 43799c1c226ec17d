package daemon

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/cubepio/internal/logfields"
)

// WorkerGroup tracks daemon-owned goroutines (event subscribers, watcher
// sync, HTTP listener). Go never races with StopAndWait.
type WorkerGroup struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
}

// Go starts fn unless the group is stopping. A panic in fn is logged and ends
// only that worker.
func (g *WorkerGroup) Go(name string, fn func()) bool {
	if fn == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Daemon worker panicked", logfields.Worker(name), slog.Any("panic", r))
			}
		}()
		slog.Debug("Daemon worker started", logfields.Worker(name))
		fn()
		slog.Debug("Daemon worker stopped", logfields.Worker(name))
	}()
	return true
}

// StopAndWait refuses new workers and waits for the running ones, bounded by ctx.
func (g *WorkerGroup) StopAndWait(ctx context.Context) error {
	g.mu.Lock()
	g.stopping = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn("Daemon workers did not stop in time", logfields.Error(ctx.Err()))
		return ctx.Err()
	}
}
