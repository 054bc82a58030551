package pipeline

// gate is a single-slot semaphore serializing generation-class stages.
//
// Decide and Reply/ReplyCode hold the slot across their backend call;
// Summarize and Classify only consult Busy before theirs and run
// unguarded, so either may overlap a generation that starts after the
// check. That window is inherited behavior and is kept as-is.
type gate struct {
	ch chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{}, 1)}
}

// TryAcquire takes the slot without blocking. Returns false when taken.
func (g *gate) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the slot. Must follow a successful TryAcquire.
func (g *gate) Release() {
	<-g.ch
}

// Busy reports whether the slot is currently held.
func (g *gate) Busy() bool {
	return len(g.ch) > 0
}
