package transcript

import "time"

// Turn is one persisted room message, ours or theirs.
type Turn struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision is one persisted verdict of the reply pipeline, from the
// relevance call through delivery. ID and CreatedAt are assigned by
// the database on insert.
type Decision struct {
	ID          int64     `json:"id"`
	Room        string    `json:"room"`
	TraceID     string    `json:"trace_id,omitempty"`
	ShouldReply bool      `json:"should_reply"`
	Reason      string    `json:"reason"`
	Context     string    `json:"context,omitempty"`
	Programming bool      `json:"programming"`
	Confidence  float64   `json:"confidence"`
	Replied     bool      `json:"replied"`
	MessageID   string    `json:"message_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Counts aggregates transcript volume for the status view.
type Counts struct {
	Turns     int64 `json:"turns"`
	Decisions int64 `json:"decisions"`
	Replies   int64 `json:"replies"`
}

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room TEXT NOT NULL,
	sender TEXT NOT NULL,
	body TEXT NOT NULL,
	encrypted BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_room ON turns(room);
CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);

CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room TEXT NOT NULL,
	trace_id TEXT NOT NULL DEFAULT '',
	should_reply BOOLEAN NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	context TEXT NOT NULL DEFAULT '',
	programming BOOLEAN NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 0,
	replied BOOLEAN NOT NULL DEFAULT 0,
	message_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_decisions_room ON decisions(room);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_trace ON decisions(trace_id);
`
