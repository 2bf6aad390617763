package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard lets _test packages exercise the guard.
type ExportedRunningGuard = reloadGuard

// ─────────────────────────────────────────────────────────────
// reloadGuard — one reload or refresh per document at a time
// ─────────────────────────────────────────────────────────────

// reloadGuard keys running work by document path. The watcher and the
// refresh schedule both fire on their own goroutines; a second trigger for
// a document that is still reconnecting is dropped.
type reloadGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks key as running and reports whether it was idle.
func (g *reloadGuard) TryLock(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[key]; ok {
		return false
	}
	g.running[key] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases a job taken by a successful TryLock.
func (g *reloadGuard) Unlock(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, key)
	g.wg.Done()
}

// WaitAll blocks until running jobs finish or ctx is cancelled.
func (g *reloadGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
