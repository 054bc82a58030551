package outbound

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mucbot/mucbot/internal/bus"
	"github.com/mucbot/mucbot/internal/gateway"
)

type fakeTransport struct {
	sent      []gateway.RawMessage
	ids       []string
	sendErrs  []error
	roster    []gateway.Occupant
	rosterErr error
}

func (f *fakeTransport) SendRaw(ctx context.Context, m gateway.RawMessage) (string, error) {
	i := len(f.sent)
	f.sent = append(f.sent, m)
	if i < len(f.sendErrs) && f.sendErrs[i] != nil {
		return "", f.sendErrs[i]
	}
	if i < len(f.ids) {
		return f.ids[i], nil
	}
	return "", nil
}

func (f *fakeTransport) Roster(ctx context.Context, room string) ([]gateway.Occupant, error) {
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.roster, nil
}

func (f *fakeTransport) SendChatState(ctx context.Context, room, state string) error { return nil }
func (f *fakeTransport) Reconnect(ctx context.Context) error                         { return nil }

type fakeCipher struct {
	units      []gateway.CipherUnit
	err        error
	body       string
	recipients []string
}

func (f *fakeCipher) Decrypt(ctx context.Context, env bus.Envelope) (string, error) {
	return "", nil
}

func (f *fakeCipher) EncryptForRecipients(ctx context.Context, body string, recipients []string) ([]gateway.CipherUnit, error) {
	f.body = body
	f.recipients = recipients
	if f.err != nil {
		return nil, f.err
	}
	return f.units, nil
}

func TestSendPlain(t *testing.T) {
	tr := &fakeTransport{ids: []string{"id-1"}}
	s := NewSender(tr, &fakeCipher{}, "AI-бот")

	id, err := s.Send(context.Background(), Message{To: "admin@example.org", Kind: "chat", Body: "привет"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "id-1" {
		t.Fatalf("expected id-1, got %q", id)
	}
	if len(tr.sent) != 1 || tr.sent[0].Body != "привет" || tr.sent[0].Unit != nil {
		t.Fatalf("unexpected send %+v", tr.sent)
	}
}

func TestSendMentionPrefixesOtherNicks(t *testing.T) {
	tr := &fakeTransport{
		roster: []gateway.Occupant{
			{Nick: "Юра", JID: "yura@example.org"},
			{Nick: "ai-БОТ", JID: "bot@example.org"},
			{Nick: "Оля", JID: "olya@example.org"},
		},
	}
	s := NewSender(tr, &fakeCipher{}, "AI-бот")

	_, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "всем привет", Mention: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	want := "Юра, Оля\nвсем привет"
	if got := tr.sent[0].Body; got != want {
		t.Fatalf("expected body %q, got %q", want, got)
	}
}

func TestSendMentionSurvivesRosterFailure(t *testing.T) {
	tr := &fakeTransport{rosterErr: errors.New("gateway down")}
	s := NewSender(tr, &fakeCipher{}, "AI-бот")

	_, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "текст", Mention: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if tr.sent[0].Body != "текст" {
		t.Fatalf("expected bare body, got %q", tr.sent[0].Body)
	}
}

func TestSendEncryptedFanout(t *testing.T) {
	tr := &fakeTransport{
		roster: []gateway.Occupant{
			{Nick: "AI-бот", JID: "bot@example.org"},
			{Nick: "Юра", JID: "yura@example.org"},
			{Nick: "Оля", JID: "olya@example.org"},
		},
		ids: []string{"s1", "s2"},
	}
	fc := &fakeCipher{units: []gateway.CipherUnit{
		{JID: "yura@example.org", Device: 1, Payload: "aaa"},
		{JID: "olya@example.org", Device: 2, Payload: "bbb"},
	}}
	s := NewSender(tr, fc, "AI-бот")

	id, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "секрет", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "s1" {
		t.Fatalf("expected first unit id s1, got %q", id)
	}
	if len(fc.recipients) != 2 {
		t.Fatalf("own jid not excluded: %v", fc.recipients)
	}
	if len(tr.sent) != 2 || tr.sent[0].Unit == nil || tr.sent[1].Unit.Device != 2 {
		t.Fatalf("unexpected sends %+v", tr.sent)
	}
	if tr.sent[0].Body != "" {
		t.Fatalf("encrypted send must not carry plaintext body, got %q", tr.sent[0].Body)
	}
}

func TestSendEncryptedDirectChatSkipsRoster(t *testing.T) {
	tr := &fakeTransport{
		rosterErr: errors.New("roster must not be consulted"),
		ids:       []string{"d1"},
	}
	fc := &fakeCipher{units: []gateway.CipherUnit{
		{JID: "admin@example.org", Device: 3, Payload: "ccc"},
	}}
	s := NewSender(tr, fc, "AI-бот")

	id, err := s.Send(context.Background(), Message{
		To: "admin@example.org", Kind: "chat", Body: "🤖 привет", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "d1" {
		t.Fatalf("expected unit id d1, got %q", id)
	}
	if len(fc.recipients) != 1 || fc.recipients[0] != "admin@example.org" {
		t.Fatalf("direct chat must encrypt to the bare recipient, got %v", fc.recipients)
	}
}

func TestSendEncryptedSkipsFailedUnit(t *testing.T) {
	tr := &fakeTransport{
		roster:   []gateway.Occupant{{Nick: "Юра", JID: "yura@example.org"}},
		sendErrs: []error{errors.New("device offline"), nil},
		ids:      []string{"", "s2"},
	}
	fc := &fakeCipher{units: []gateway.CipherUnit{
		{JID: "yura@example.org", Device: 1, Payload: "aaa"},
		{JID: "yura@example.org", Device: 9, Payload: "bbb"},
	}}
	s := NewSender(tr, fc, "AI-бот")

	id, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "x", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "s2" {
		t.Fatalf("expected surviving unit id s2, got %q", id)
	}
}

func TestSendEncryptedSynthesizesID(t *testing.T) {
	tr := &fakeTransport{
		roster: []gateway.Occupant{{Nick: "Юра", JID: "yura@example.org"}},
	}
	fc := &fakeCipher{units: []gateway.CipherUnit{{JID: "yura@example.org", Device: 1, Payload: "aaa"}}}
	s := NewSender(tr, fc, "AI-бот")
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	id, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "x", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "msg_1700000000123" {
		t.Fatalf("expected synthesized id, got %q", id)
	}
}

func TestSendEncryptionFailureFallsBackToPlaintext(t *testing.T) {
	tr := &fakeTransport{
		roster: []gateway.Occupant{{Nick: "Юра", JID: "yura@example.org"}},
		ids:    []string{"plain-1"},
	}
	fc := &fakeCipher{err: &gateway.EncryptionError{Op: "encrypt", Err: errors.New("no sessions")}}
	s := NewSender(tr, fc, "AI-бот")

	id, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "ответ",
		Encrypt: true, CorrectionOf: "msg_7",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "plain-1" {
		t.Fatalf("expected plaintext id, got %q", id)
	}
	last := tr.sent[len(tr.sent)-1]
	if last.Unit != nil || last.Body != "ответ" {
		t.Fatalf("expected plaintext fallback, got %+v", last)
	}
	if !strings.Contains(last.Correction, "msg_7") {
		t.Fatalf("correction lost in fallback: %q", last.Correction)
	}
}

func TestSendEncryptedNoRecipientsFallsBack(t *testing.T) {
	tr := &fakeTransport{
		roster: []gateway.Occupant{{Nick: "AI-бот", JID: "bot@example.org"}},
		ids:    []string{"plain-1"},
	}
	s := NewSender(tr, &fakeCipher{}, "AI-бот")

	id, err := s.Send(context.Background(), Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "один в комнате", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "plain-1" {
		t.Fatalf("expected plaintext id, got %q", id)
	}
}
