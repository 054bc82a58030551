package agent

import (
	"sync"
	"time"
)

// ResponseGate rate-limits replies. The clock starts at construction,
// so the bot also stays quiet for the first interval after boot.
type ResponseGate struct {
	minInterval time.Duration
	now         func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewResponseGate(minInterval time.Duration) *ResponseGate {
	g := &ResponseGate{
		minInterval: minInterval,
		now:         time.Now,
	}
	g.last = g.now()
	return g
}

// TooSoon reports whether the minimum interval since the last reply
// has not yet passed. The exact boundary counts as not-too-soon.
func (g *ResponseGate) TooSoon() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Sub(g.last) < g.minInterval
}

// Record marks a reply as dispatched. Called only after the send
// actually happened.
func (g *ResponseGate) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = g.now()
}
