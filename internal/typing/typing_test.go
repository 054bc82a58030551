package typing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mucbot/mucbot/internal/outbound"
)

type fakeSender struct {
	sent   []outbound.Message
	prefix string
}

func (f *fakeSender) Send(ctx context.Context, m outbound.Message) (string, error) {
	f.sent = append(f.sent, m)
	if len(f.sent) == 1 {
		return "msg-1", nil
	}
	return "", nil
}

func (f *fakeSender) MentionPrefix(ctx context.Context, room string) string {
	return f.prefix
}

func newTestSimulator(fs *fakeSender, enabled bool) *Simulator {
	s := New(fs, enabled)
	s.jitter = func() float64 { return 1.0 }
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func TestDeliverDisabledSendsOnce(t *testing.T) {
	fs := &fakeSender{}
	s := newTestSimulator(fs, false)

	id, err := s.Deliver(context.Background(), outbound.Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "привет мир", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("expected msg-1, got %q", id)
	}
	if len(fs.sent) != 1 || fs.sent[0].Body != "привет мир" {
		t.Fatalf("expected one full send, got %+v", fs.sent)
	}
	if !fs.sent[0].Encrypt {
		t.Fatalf("direct path must keep the caller's encryption flag")
	}
}

func TestDeliverRevealsWordByWord(t *testing.T) {
	fs := &fakeSender{}
	s := newTestSimulator(fs, true)

	id, err := s.Deliver(context.Background(), outbound.Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "привет мир", Encrypt: true,
	})
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("expected visible message id msg-1, got %q", id)
	}

	wantBodies := []string{"█", "привет█", "привет мир▌", "привет мир"}
	if len(fs.sent) != len(wantBodies) {
		t.Fatalf("expected %d sends, got %d: %+v", len(wantBodies), len(fs.sent), fs.sent)
	}
	for i, want := range wantBodies {
		if fs.sent[i].Body != want {
			t.Errorf("send %d: expected body %q, got %q", i, want, fs.sent[i].Body)
		}
		if fs.sent[i].Encrypt {
			t.Errorf("send %d: typing traffic must be unencrypted", i)
		}
	}
	if fs.sent[0].CorrectionOf != "" {
		t.Errorf("cursor message must not be a correction")
	}
	for i := 1; i < len(fs.sent); i++ {
		if fs.sent[i].CorrectionOf != "msg-1" {
			t.Errorf("send %d: expected correction of msg-1, got %q", i, fs.sent[i].CorrectionOf)
		}
	}
}

func TestDeliverResolvesMentionOnce(t *testing.T) {
	fs := &fakeSender{prefix: "Юра, Оля"}
	s := newTestSimulator(fs, true)

	_, err := s.Deliver(context.Background(), outbound.Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: "всем привет", Mention: true,
	})
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	final := fs.sent[len(fs.sent)-1]
	if final.Body != "Юра, Оля\nвсем привет" {
		t.Fatalf("final edit lost the mention: %q", final.Body)
	}
	for i, m := range fs.sent {
		if m.Mention {
			t.Errorf("send %d still carries the mention flag", i)
		}
	}
}

func TestDeliverEmptyBodySkipsReveal(t *testing.T) {
	fs := &fakeSender{}
	s := newTestSimulator(fs, true)

	if _, err := s.Deliver(context.Background(), outbound.Message{To: "x", Kind: "chat", Body: "   "}); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if len(fs.sent) != 1 {
		t.Fatalf("expected single direct send, got %d", len(fs.sent))
	}
}

func TestDeliverCancelSkipsFinalEdit(t *testing.T) {
	fs := &fakeSender{}
	s := New(fs, true)
	s.jitter = func() float64 { return 1.0 }
	calls := 0
	s.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		if calls == 2 {
			s.Cancel("room@conference.example.org")
			return context.Canceled
		}
		return ctx.Err()
	}

	body := "раз два три четыре"
	id, err := s.Deliver(context.Background(), outbound.Message{
		To: "room@conference.example.org", Kind: "groupchat", Body: body,
	})
	if err != nil {
		t.Fatalf("cancelled delivery is not an error, got %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("expected cursor id, got %q", id)
	}
	last := fs.sent[len(fs.sent)-1]
	if last.Body == body {
		t.Fatalf("final edit must not follow cancellation")
	}
	if !strings.HasSuffix(last.Body, cursorEven) && !strings.HasSuffix(last.Body, cursorOdd) {
		t.Fatalf("expected a cursor frame to remain, got %q", last.Body)
	}
}

func TestCancelReportsSessionExistence(t *testing.T) {
	s := newTestSimulator(&fakeSender{}, true)

	if s.Cancel("room@conference.example.org") {
		t.Fatalf("no session yet, Cancel must report false")
	}
	ctx, sess := s.begin(context.Background(), "room@conference.example.org")
	if !s.Cancel("room@conference.example.org") {
		t.Fatalf("live session, Cancel must report true")
	}
	if ctx.Err() == nil {
		t.Fatalf("Cancel must cancel the session context")
	}
	s.end("room@conference.example.org", sess)
}

func TestNewSessionCancelsPrevious(t *testing.T) {
	s := newTestSimulator(&fakeSender{}, true)

	ctx1, sess1 := s.begin(context.Background(), "room@conference.example.org")
	ctx2, sess2 := s.begin(context.Background(), "room@conference.example.org")
	defer s.end("room@conference.example.org", sess2)

	if ctx1.Err() == nil {
		t.Fatalf("expected first session to be cancelled")
	}
	if ctx2.Err() != nil {
		t.Fatalf("second session must stay live")
	}
	s.end("room@conference.example.org", sess1)
	if s.active["room@conference.example.org"] != sess2 {
		t.Fatalf("ending a stale session must not evict the live one")
	}
}

func TestDelayFor(t *testing.T) {
	cases := []struct {
		word   string
		jitter float64
		want   time.Duration
	}{
		{"привет", 1.0, minWordDelay},
		{strings.Repeat("а", 40), 1.0, 400 * time.Millisecond},
		{strings.Repeat("а", 39) + ".", 1.0, 680 * time.Millisecond},
		{strings.Repeat("а", 39) + ",", 1.0, 520 * time.Millisecond},
		{strings.Repeat("а", 300) + "!", 1.0, maxWordDelay},
		{strings.Repeat("а", 40), 1.15, 460 * time.Millisecond},
	}
	for _, tc := range cases {
		got := delayFor(tc.word, tc.jitter)
		diff := got - tc.want
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Millisecond {
			t.Errorf("delayFor(%q, %v) = %v, want %v", tc.word, tc.jitter, got, tc.want)
		}
	}
}
