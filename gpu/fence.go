package gpu

import "sync"

// FenceCycle marks a batch of in-flight host GPU work. It is attached to
// resources the work touches and must be waited on before any conflicting
// CPU-side mutation of those resources.
type FenceCycle struct {
	once     sync.Once
	signaled chan struct{}
}

// NewFenceCycle creates an unsignaled fence cycle.
func NewFenceCycle() *FenceCycle {
	return &FenceCycle{signaled: make(chan struct{})}
}

// SignaledFenceCycle creates a fence cycle whose work has already finished.
// Synchronous backends hand these out.
func SignaledFenceCycle() *FenceCycle {
	cycle := NewFenceCycle()
	cycle.Signal()
	return cycle
}

// Signal marks the cycle's work as complete, releasing all waiters. Safe to
// call more than once.
func (c *FenceCycle) Signal() {
	c.once.Do(func() { close(c.signaled) })
}

// Wait blocks until the cycle is signaled.
func (c *FenceCycle) Wait() {
	<-c.signaled
}

// Signaled reports whether the cycle's work has completed.
func (c *FenceCycle) Signaled() bool {
	select {
	case <-c.signaled:
		return true
	default:
		return false
	}
}
