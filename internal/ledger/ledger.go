// Package ledger keeps a SQLite record of remote calls: operation, model,
// token usage, latency and outcome. Request content is never stored, only a
// fingerprint of it.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"OpenAIApp/internal/completion"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	op TEXT NOT NULL,
	model TEXT,
	fingerprint TEXT,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	duration_ms INTEGER,
	error TEXT,
	created_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_calls_session ON calls(session_id);`

// Entry is one stored call
type Entry struct {
	ID               int64
	SessionID        string
	Op               string
	Model            string
	Fingerprint      string
	PromptTokens     int
	CompletionTokens int
	DurationMS       int64
	Error            string
	CreatedAt        time.Time
}

// Summary aggregates the calls of one session
type Summary struct {
	Calls            int
	Failures         int
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens
func (s Summary) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// Ledger stores call records in SQLite
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger database at path
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create calls table: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Add stores one entry
func (l *Ledger) Add(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO calls (session_id, op, model, fingerprint, prompt_tokens, completion_tokens, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Op, e.Model, e.Fingerprint, e.PromptTokens, e.CompletionTokens, e.DurationMS, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call: %w", err)
	}
	return nil
}

// Entries returns the calls of a session in insertion order
func (l *Ledger) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, op, model, fingerprint, prompt_tokens, completion_tokens, duration_ms, error, created_at
		 FROM calls WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load calls: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Op, &e.Model, &e.Fingerprint,
			&e.PromptTokens, &e.CompletionTokens, &e.DurationMS, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary aggregates the calls of a session
func (l *Ledger) Summary(ctx context.Context, sessionID string) (Summary, error) {
	var s Summary
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(prompt_tokens), 0),
		        COALESCE(SUM(completion_tokens), 0)
		 FROM calls WHERE session_id = ?`,
		sessionID,
	).Scan(&s.Calls, &s.Failures, &s.PromptTokens, &s.CompletionTokens)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize session: %w", err)
	}
	return s, nil
}

// Recorder binds the ledger to a session so it can be handed to the
// completion client
func (l *Ledger) Recorder(sessionID string) completion.Recorder {
	return &recorder{ledger: l, sessionID: sessionID}
}

type recorder struct {
	ledger    *Ledger
	sessionID string
}

func (r *recorder) Record(ctx context.Context, rec completion.CallRecord) {
	e := Entry{
		SessionID:        r.sessionID,
		Op:               rec.Op,
		Model:            rec.Model,
		Fingerprint:      Fingerprint(rec.Input),
		PromptTokens:     rec.Usage.PromptTokens,
		CompletionTokens: rec.Usage.CompletionTokens,
		DurationMS:       rec.Duration.Milliseconds(),
	}
	if rec.Err != nil {
		e.Error = rec.Err.Error()
	}
	// A failed write must not fail the call it describes.
	if err := r.ledger.Add(context.WithoutCancel(ctx), e); err != nil {
		r.ledger.logger.Warn("failed to record call", "op", rec.Op, "error", err)
	}
}
