// Package typing fakes a human typing into the room: a cursor-only
// message goes out first, then the text is revealed word by word
// through message corrections, ending with an edit to the exact final
// text. Every frame of the reveal is sent unencrypted; corrections to
// an encrypted original would not render on most clients.
package typing

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mucbot/mucbot/internal/outbound"
)

// MessageSender is the slice of the send orchestrator the simulator
// needs.
type MessageSender interface {
	Send(ctx context.Context, m outbound.Message) (string, error)
	MentionPrefix(ctx context.Context, room string) string
}

const (
	cursorEven = "█"
	cursorOdd  = "▌"

	minWordDelay = 250 * time.Millisecond
	maxWordDelay = 2 * time.Second
)

type session struct {
	cancel context.CancelFunc
}

// Simulator drives the reveal. At most one live session per room:
// starting a new reveal cancels the one still running there, and a
// cancelled reveal stops without its final edit.
type Simulator struct {
	sender  MessageSender
	enabled bool

	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active map[string]*session
}

func New(sender MessageSender, enabled bool) *Simulator {
	return &Simulator{
		sender:  sender,
		enabled: enabled,
		jitter:  randomJitter,
		sleep:   sleepCtx,
		active:  make(map[string]*session),
	}
}

// Deliver sends m, with the typing reveal when enabled. The mention
// prefix is resolved once up front so every frame and the final edit
// carry the same text. Returns the id of the visible message; a
// cancelled reveal is still a delivery, not an error.
func (s *Simulator) Deliver(ctx context.Context, m outbound.Message) (string, error) {
	if m.Mention && m.Kind == "groupchat" {
		if prefix := s.sender.MentionPrefix(ctx, m.To); prefix != "" {
			m.Body = prefix + "\n" + m.Body
		}
		m.Mention = false
	}

	words := strings.Fields(m.Body)
	if !s.enabled || len(words) == 0 {
		return s.sender.Send(ctx, m)
	}

	ctx, sess := s.begin(ctx, m.To)
	defer s.end(m.To, sess)

	cursorMsg := m
	cursorMsg.Body = cursorEven
	cursorMsg.Encrypt = false
	id, err := s.sender.Send(ctx, cursorMsg)
	if err != nil {
		return "", err
	}

	displayed := ""
	for i, word := range words {
		if ctx.Err() != nil {
			break
		}
		displayed += word + " "
		cursor := cursorEven
		if i%2 == 1 {
			cursor = cursorOdd
		}
		frame := m
		frame.Body = strings.TrimSpace(displayed) + cursor
		frame.Encrypt = false
		frame.CorrectionOf = id
		if _, err := s.sender.Send(ctx, frame); err != nil {
			slog.Warn("Typing frame failed", "to", m.To, "error", err)
		}
		if err := s.sleep(ctx, delayFor(word, s.jitter())); err != nil {
			break
		}
	}

	// A cancelled session leaves the last frame as-is.
	if ctx.Err() == nil {
		final := m
		final.Encrypt = false
		final.CorrectionOf = id
		if _, err := s.sender.Send(ctx, final); err != nil {
			slog.Warn("Final edit failed", "to", m.To, "error", err)
		}
	}
	return id, nil
}

// Cancel stops the live reveal for room, reporting whether one
// existed.
func (s *Simulator) Cancel(room string) bool {
	s.mu.Lock()
	sess := s.active[room]
	delete(s.active, room)
	s.mu.Unlock()
	if sess == nil {
		return false
	}
	sess.cancel()
	return true
}

func (s *Simulator) begin(ctx context.Context, room string) (context.Context, *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.active[room]; old != nil {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	sess := &session{cancel: cancel}
	s.active[room] = sess
	return ctx, sess
}

func (s *Simulator) end(room string, sess *session) {
	sess.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[room] == sess {
		delete(s.active, room)
	}
}

// delayFor paces one word: longer words take longer, sentence-ending
// punctuation pauses hardest, and everything stays inside
// [minWordDelay, maxWordDelay].
func delayFor(word string, jitter float64) time.Duration {
	secs := 0.02 * float64(utf8.RuneCountInString(word)) * 0.5 * jitter
	if last, _ := utf8.DecodeLastRuneInString(word); last != utf8.RuneError {
		switch {
		case strings.ContainsRune(".!?", last):
			secs *= 1.7
		case strings.ContainsRune(",;:", last):
			secs *= 1.3
		}
	}
	d := time.Duration(secs * float64(time.Second))
	if d < minWordDelay {
		d = minWordDelay
	}
	if d > maxWordDelay {
		d = maxWordDelay
	}
	return d
}

func randomJitter() float64 {
	choices := [...]float64{0.85, 1.0, 1.15}
	return choices[rand.Intn(len(choices))]
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
