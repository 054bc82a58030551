// Package history provides the bounded conversation history buffer.
package history

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Capacity is the maximum number of turns the buffer retains.
const Capacity = 10

// TimeLayout is the timestamp layout used when turns are rendered for prompts.
const TimeLayout = "01-02-2006 15:04:05"

// Empty is the placeholder rendered for an empty window.
const Empty = "История пуста"

// Turn is a single chat message as remembered by the bot.
// Immutable once stored.
type Turn struct {
	Sender string
	Text   string
	Time   time.Time
}

// Store is a fixed-capacity FIFO buffer of recent chat turns.
// The bot's own display name is stripped from stored text so that
// self-mentions do not pollute later prompts.
type Store struct {
	nick  string
	now   func() time.Time
	mu    sync.RWMutex
	turns []Turn
}

// NewStore creates an empty history buffer for the given bot nick.
func NewStore(nick string) *Store {
	return &Store{
		nick:  nick,
		now:   time.Now,
		turns: make([]Turn, 0, Capacity),
	}
}

// SetClock overrides the clock used to stamp turns. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Append records a turn, evicting the oldest one when the buffer is full.
func (s *Store) Append(sender, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nick != "" {
		text = strings.ReplaceAll(text, s.nick, "")
	}
	s.turns = append(s.turns, Turn{
		Sender: sender,
		Text:   text,
		Time:   s.now(),
	})
	if len(s.turns) > Capacity {
		s.turns = s.turns[1:]
	}
}

// Last returns a copy of the most recent n turns in original order.
func (s *Store) Last(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// Len returns the number of retained turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Format renders turns as numbered "time - sender: text" lines for prompts.
func Format(turns []Turn) string {
	if len(turns) == 0 {
		return Empty
	}
	lines := make([]string, 0, len(turns))
	for i, t := range turns {
		lines = append(lines, fmt.Sprintf("%d. %s - %s: %s", i+1, t.Time.Format(TimeLayout), t.Sender, t.Text))
	}
	return strings.Join(lines, "\n")
}
