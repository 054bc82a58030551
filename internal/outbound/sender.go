// Package outbound turns reply text into gateway sends: mention
// prefixes, OMEMO encryption fan-out and the plaintext fallback.
package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mucbot/mucbot/internal/gateway"
)

// Message is one outgoing message. CorrectionOf carries the id of a
// previously sent message that this one replaces.
type Message struct {
	To           string
	Kind         string
	Body         string
	Encrypt      bool
	Mention      bool
	CorrectionOf string
}

// Sender routes messages through the session gateway. Encryption is
// attempted per recipient device; when it fails the message still goes
// out as a single plaintext stanza.
type Sender struct {
	transport gateway.Transport
	cipher    gateway.Cipher
	nick      string
	now       func() time.Time
}

func NewSender(transport gateway.Transport, cipher gateway.Cipher, nick string) *Sender {
	return &Sender{
		transport: transport,
		cipher:    cipher,
		nick:      nick,
		now:       time.Now,
	}
}

// Send delivers m and returns the stanza id of the message that went
// out. For encrypted fan-out the first sent unit's id wins; when no
// unit reports one, a msg_<unix-millis> id is synthesized so later
// corrections still have a target.
func (s *Sender) Send(ctx context.Context, m Message) (string, error) {
	body := m.Body
	if m.Mention && m.Kind == "groupchat" {
		if prefix := s.MentionPrefix(ctx, m.To); prefix != "" {
			body = prefix + "\n" + body
		}
	}

	correction := ""
	if m.CorrectionOf != "" {
		correction = gateway.CorrectionElement(m.CorrectionOf)
	}

	if m.Encrypt {
		id, err := s.sendEncrypted(ctx, m.To, m.Kind, body, correction)
		if err == nil {
			return id, nil
		}
		slog.Warn("Encrypted send failed, falling back to plaintext", "to", m.To, "error", err)
	}

	return s.transport.SendRaw(ctx, gateway.RawMessage{
		To:         m.To,
		Kind:       m.Kind,
		Body:       body,
		Correction: correction,
	})
}

// MentionPrefix joins the nicks of everyone else in the room. A roster
// failure only costs the prefix, never the message.
func (s *Sender) MentionPrefix(ctx context.Context, room string) string {
	occupants, err := s.transport.Roster(ctx, room)
	if err != nil {
		slog.Warn("Roster fetch for mention failed", "room", room, "error", err)
		return ""
	}
	var nicks []string
	for _, o := range occupants {
		if strings.EqualFold(o.Nick, s.nick) {
			continue
		}
		nicks = append(nicks, o.Nick)
	}
	return strings.Join(nicks, ", ")
}

func (s *Sender) sendEncrypted(ctx context.Context, to, kind, body, correction string) (string, error) {
	recipients, err := s.encryptRecipients(ctx, to, kind)
	if err != nil {
		return "", err
	}

	units, err := s.cipher.EncryptForRecipients(ctx, body, recipients)
	if err != nil {
		return "", err
	}
	if len(units) == 0 {
		return "", fmt.Errorf("encryption produced no units for %s", to)
	}

	var firstID string
	sent := 0
	for _, u := range units {
		id, err := s.transport.SendRaw(ctx, gateway.RawMessage{
			To:         to,
			Kind:       kind,
			Unit:       &u,
			Correction: correction,
		})
		if err != nil {
			slog.Warn("Encrypted unit send failed", "jid", u.JID, "device", u.Device, "error", err)
			continue
		}
		sent++
		if firstID == "" {
			firstID = id
		}
	}
	if sent == 0 {
		return "", fmt.Errorf("all %d encrypted units failed for %s", len(units), to)
	}
	if firstID == "" {
		firstID = "msg_" + strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	return firstID, nil
}

// encryptRecipients resolves who a ciphertext is for: the whole room
// roster minus self when broadcasting, the bare recipient otherwise.
func (s *Sender) encryptRecipients(ctx context.Context, to, kind string) ([]string, error) {
	if kind != "groupchat" {
		return []string{to}, nil
	}
	occupants, err := s.transport.Roster(ctx, to)
	if err != nil {
		return nil, err
	}
	var recipients []string
	for _, o := range occupants {
		if strings.EqualFold(o.Nick, s.nick) || o.JID == "" {
			continue
		}
		recipients = append(recipients, o.JID)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients for encryption in %s", to)
	}
	return recipients, nil
}
