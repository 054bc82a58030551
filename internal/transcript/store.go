// Package transcript keeps a durable record of room traffic and reply
// decisions in a local sqlite database. Writes are best-effort: the
// bot never refuses to answer because the disk said no.
package transcript

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and
// applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply transcript schema: %w", err)
	}
	// Best-effort migrations for transcript files created before the
	// decision row grew its pipeline columns (no-op if the column
	// exists).
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN trace_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN context TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN programming BOOLEAN DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN confidence REAL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN message_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_decisions_trace ON decisions(trace_id)`)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AddTurn(room, sender, body string, encrypted bool) error {
	_, err := s.db.Exec(
		`INSERT INTO turns (room, sender, body, encrypted) VALUES (?, ?, ?, ?)`,
		room, sender, body, encrypted,
	)
	return err
}

func (s *Store) AddDecision(d *Decision) error {
	_, err := s.db.Exec(
		`INSERT INTO decisions (room, trace_id, should_reply, reason, context, programming, confidence, replied, message_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Room, d.TraceID, d.ShouldReply, d.Reason, d.Context, d.Programming, d.Confidence, d.Replied, d.MessageID,
	)
	return err
}

// RecentTurns returns up to limit turns for the room, oldest first.
func (s *Store) RecentTurns(room string, limit int) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT id, room, sender, body, encrypted, created_at
		 FROM turns WHERE room = ? ORDER BY id DESC LIMIT ?`,
		room, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Room, &t.Sender, &t.Body, &t.Encrypted, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(turns)
	return turns, nil
}

// RecentDecisions returns up to limit decisions for the room, oldest
// first.
func (s *Store) RecentDecisions(room string, limit int) ([]Decision, error) {
	rows, err := s.db.Query(
		`SELECT id, room, trace_id, should_reply, reason, context, programming, confidence, replied, message_id, created_at
		 FROM decisions WHERE room = ? ORDER BY id DESC LIMIT ?`,
		room, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.Room, &d.TraceID, &d.ShouldReply, &d.Reason, &d.Context, &d.Programming, &d.Confidence, &d.Replied, &d.MessageID, &d.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(decisions)
	return decisions, nil
}

func (s *Store) Counts() (Counts, error) {
	var c Counts
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&c.Turns); err != nil {
		return c, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&c.Decisions); err != nil {
		return c, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE replied = 1`).Scan(&c.Replies); err != nil {
		return c, err
	}
	return c, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
