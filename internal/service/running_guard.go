package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard lets _test packages exercise the guard directly.
type ExportedRunningGuard = runningJobsGuard

// ─────────────────────────────────────────────────────────────
// runningJobsGuard: one active run per job name
// ─────────────────────────────────────────────────────────────

// runningJobsGuard makes sure a cron tick, a file event and a manual run
// never execute the same job concurrently.
type runningJobsGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// TryLock marks name as running. It returns false if it already is or the
// guard is closed.
func (g *runningJobsGuard) TryLock(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[name]; ok {
		return false
	}
	g.running[name] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases name. Call it exactly once per successful TryLock.
func (g *runningJobsGuard) Unlock(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[name]; !ok {
		return
	}
	delete(g.running, name)
	g.wg.Done()
}

// IsRunning reports whether name currently holds the guard.
func (g *runningJobsGuard) IsRunning(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[name]
	return ok
}

// Close refuses every later TryLock. Runs already holding the guard are
// unaffected, so WaitAll after Close never races a new wg.Add.
func (g *runningJobsGuard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// IsClosed reports whether Close was called.
func (g *runningJobsGuard) IsClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// WaitAll blocks until every held name is released or ctx is done.
func (g *runningJobsGuard) WaitAll(ctx context.Context) {
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
