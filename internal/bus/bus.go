// Package bus provides the transport event queue between the session
// gateway stream and the agent loop.
package bus

import (
	"context"
	"time"
)

// EventKind names a transport event.
type EventKind string

const (
	EventSessionStart EventKind = "sessionStart"
	EventGotOnline    EventKind = "gotOnline"
	EventGroupMessage EventKind = "groupMessage"
	EventSessionEnd   EventKind = "sessionEnd"
	EventDisconnected EventKind = "disconnected"
	EventDeviceTrust  EventKind = "deviceTrust"
)

// Envelope is a normalized inbound chat message as delivered by the
// session gateway. Body holds plaintext; encrypted messages carry the
// OMEMO payload instead and are decrypted by the core.
type Envelope struct {
	ID        string `json:"id"`
	Room      string `json:"room,omitempty"`
	From      string `json:"from"`
	Nick      string `json:"nick,omitempty"`
	Kind      string `json:"kind"`
	Body      string `json:"body,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// DeviceTrust describes a device-trust change reported by the
// encryption session layer.
type DeviceTrust struct {
	JID         string `json:"jid"`
	DeviceID    int    `json:"deviceId"`
	Fingerprint string `json:"fingerprint"`
	Trusted     bool   `json:"trusted"`
}

// Event is one transport event. Events are delivered to the agent
// loop one at a time in arrival order.
type Event struct {
	Kind      EventKind    `json:"type"`
	Message   *Envelope    `json:"message,omitempty"`
	Trust     *DeviceTrust `json:"trust,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

// Bus carries transport events from the gateway stream to the agent loop.
type Bus struct {
	events chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{events: make(chan Event, 100)}
}

// Publish enqueues a transport event.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.events <- ev
}

// Consume blocks until an event is available or the context is cancelled.
func (b *Bus) Consume(ctx context.Context) (Event, error) {
	select {
	case ev := <-b.events:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Size returns the number of pending events.
func (b *Bus) Size() int {
	return len(b.events)
}
