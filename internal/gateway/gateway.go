// Package gateway provides the client for the external session
// gateway daemon that owns the XMPP wire protocol and the OMEMO
// sessions. The gateway pushes transport events over a websocket
// stream and accepts commands over HTTP; the core keeps all
// message-handling policy on its side.
package gateway

import (
	"context"
	"fmt"

	"github.com/mucbot/mucbot/internal/bus"
)

// Chat state values forwarded to the room.
const (
	StateComposing = "composing"
	StateActive    = "active"
)

// Occupant is a room roster entry.
type Occupant struct {
	Nick string `json:"nick"`
	JID  string `json:"jid"`
}

// CipherUnit is one per-device ciphertext produced by the encryption
// session layer.
type CipherUnit struct {
	JID     string `json:"jid"`
	Device  int    `json:"device"`
	Payload string `json:"payload"`
}

// RawMessage is a single stanza send request. Body carries plaintext;
// encrypted sends carry a Unit instead. Correction is the
// message-correction XML fragment appended to the stanza verbatim.
type RawMessage struct {
	To         string      `json:"to"`
	Kind       string      `json:"kind"`
	Body       string      `json:"body,omitempty"`
	Correction string      `json:"correction,omitempty"`
	Unit       *CipherUnit `json:"unit,omitempty"`
}

// Session is the XMPP identity the gateway daemon brings online.
type Session struct {
	JID      string `json:"jid"`
	Password string `json:"password"`
	Nick     string `json:"nick"`
	Room     string `json:"room"`
}

// Transport is the narrow transport surface the core depends on.
type Transport interface {
	// SendRaw sends one stanza and returns its message id.
	SendRaw(ctx context.Context, msg RawMessage) (string, error)
	// Roster returns the current occupants of a room.
	Roster(ctx context.Context, room string) ([]Occupant, error)
	// SendChatState publishes a composing/active notification.
	SendChatState(ctx context.Context, room, state string) error
	// Reconnect asks the gateway to re-establish the XMPP session.
	Reconnect(ctx context.Context) error
}

// Cipher is the narrow encryption surface the core depends on.
type Cipher interface {
	// Decrypt recovers the plaintext body of an encrypted envelope.
	Decrypt(ctx context.Context, env bus.Envelope) (string, error)
	// EncryptForRecipients produces one ciphertext unit per recipient device.
	EncryptForRecipients(ctx context.Context, body string, recipients []string) ([]CipherUnit, error)
}

// TransportError marks a send or connect failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EncryptionError marks an encryption session failure.
type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption %s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}
