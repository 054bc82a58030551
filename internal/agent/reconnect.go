package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mucbot/mucbot/internal/gateway"
)

const (
	maxReconnectAttempts = 10
	maxReconnectWait     = 60 * time.Second
)

// Reconnector drives the bounded-backoff recovery after a transport
// drop. Only one attempt sequence runs at a time; the attempt counter
// resets when a session actually comes back (session start event), not
// when a reconnect request merely succeeds.
type Reconnector struct {
	transport gateway.Transport
	sleep     func(ctx context.Context, d time.Duration) error

	fatalOnce sync.Once
	fatal     chan struct{}

	mu       sync.Mutex
	attempts int
	running  bool
}

func NewReconnector(transport gateway.Transport) *Reconnector {
	return &Reconnector{
		transport: transport,
		sleep:     sleepCtx,
		fatal:     make(chan struct{}),
	}
}

// Reset clears the attempt counter after a successful session start.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = 0
}

// Fatal is closed when every attempt has been spent.
func (r *Reconnector) Fatal() <-chan struct{} {
	return r.fatal
}

// Wake starts the attempt sequence unless one is already running.
func (r *Reconnector) Wake(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	go r.run(ctx)
}

func (r *Reconnector) run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for {
		r.mu.Lock()
		if r.attempts >= maxReconnectAttempts {
			r.mu.Unlock()
			slog.Error("Reconnect attempts exhausted", "attempts", maxReconnectAttempts)
			r.fatalOnce.Do(func() { close(r.fatal) })
			return
		}
		r.attempts++
		attempt := r.attempts
		r.mu.Unlock()

		wait := backoff(attempt)
		slog.Info("Reconnecting", "attempt", attempt, "max", maxReconnectAttempts, "wait", wait)
		if err := r.sleep(ctx, wait); err != nil {
			return
		}
		if err := r.transport.Reconnect(ctx); err != nil {
			slog.Warn("Reconnect request failed", "attempt", attempt, "error", err)
			continue
		}
		return
	}
}

// backoff yields 2,4,8,16,32 then 60s for every later attempt.
func backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * time.Second
	if d > maxReconnectWait {
		d = maxReconnectWait
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
