package internal

import "context"

// WorkGate bounds the number of CPU-heavy hash comparisons running at once.
//
// WorkGate instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type WorkGate struct {
	slots chan struct{}
}

// NewWorkGate returns a gate admitting at most n concurrent holders.
// n values below 1 are treated as 1.
func NewWorkGate(n int) *WorkGate {
	if n < 1 {
		n = 1
	}
	return &WorkGate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
//
// Acquire may return an error when input validation, dependency calls, or
// security checks fail.
func (g *WorkGate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously obtained through Acquire.
func (g *WorkGate) Release() {
	<-g.slots
}
