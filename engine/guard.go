package engine

import "sync"

// opGuard serializes mutating operations with try-lock semantics. A
// plain mutex would deadlock when a value transfer re-enters the engine
// on the same goroutine; the flag rejects the nested call immediately
// instead. The hosting platform is expected to serialize mutating
// calls, so an overlapping call from another goroutine is rejected the
// same way rather than queued.
type opGuard struct {
	mu     sync.Mutex
	locked bool
}

// enter acquires the operation lock or fails without blocking.
func (g *opGuard) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return Statef("another operation is in progress")
	}
	g.locked = true
	return nil
}

// exit releases the operation lock. Always deferred at operation entry
// so every exit path, including error paths, releases it.
func (g *opGuard) exit() {
	g.mu.Lock()
	g.locked = false
	g.mu.Unlock()
}
