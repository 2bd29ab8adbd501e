// Package transcript – store.go records agent loop events in SQLite. The
// transcript is an audit trail of what each turn did (model calls, routing
// decisions, tool results, compactions); it is write-mostly and is never used
// to rebuild a conversation.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT    NOT NULL,
	turn_id     TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	strategy    TEXT    NOT NULL DEFAULT '',
	state       TEXT    NOT NULL DEFAULT '',
	decision    TEXT    NOT NULL DEFAULT '',
	iteration   INTEGER NOT NULL DEFAULT 0,
	log_len     INTEGER NOT NULL DEFAULT 0,
	prompt_len  INTEGER NOT NULL DEFAULT 0,
	tool_name   TEXT    NOT NULL DEFAULT '',
	tool_call_id TEXT   NOT NULL DEFAULT '',
	detail      TEXT    NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT    NOT NULL DEFAULT '',
	created_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn_id);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session, id);
`

// Record is one stored event.
type Record struct {
	ID         int64
	Session    string
	TurnID     string
	Kind       string
	Strategy   string
	State      string
	Decision   string
	Iteration  int
	LogLen     int
	PromptLen  int
	ToolName   string
	ToolCallID string
	Detail     string
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// StoreConfig holds the parameters for opening a transcript store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in
	// memory. Parent directories are created.
	Path string

	// Session tags every event written through this store.
	Session string

	Logger *slog.Logger
}

// Store writes loop events to SQLite. It implements agent.Observer.
type Store struct {
	db      *sql.DB
	session string
	logger  *slog.Logger
}

var _ agent.Observer = (*Store)(nil)

// OpenStore opens (creating if needed) the transcript database.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("transcript store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("transcript store: creating dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("transcript store: open: %w", err)
	}
	// One connection: in-memory databases are per-connection, and the
	// loop writes from a single goroutine anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript store: schema: %w", err)
	}

	return &Store{
		db:      db,
		session: cfg.Session,
		logger:  logger.With("component", "transcript"),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Observe implements agent.Observer. Write failures are logged, never
// propagated: the transcript must not break a turn.
func (s *Store) Observe(ctx context.Context, ev agent.Event) {
	if err := s.Write(ctx, ev); err != nil {
		s.logger.Warn("failed to record event", "kind", string(ev.Kind), "error", err)
	}
}

// Write stores one event.
func (s *Store) Write(ctx context.Context, ev agent.Event) error {
	errText := ""
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	created := ev.Time
	if created.IsZero() {
		created = time.Now()
	}

	// Detached from ctx so events of a cancelled turn still get recorded.
	ctx = context.WithoutCancel(ctx)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (session, turn_id, kind, strategy, state, decision, iteration,
			log_len, prompt_len, tool_name, tool_call_id, detail, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.session, ev.TurnID, string(ev.Kind), string(ev.Strategy), string(ev.State), string(ev.Decision),
		ev.Iteration, ev.LogLen, ev.PromptLen, ev.ToolName, ev.ToolCallID, ev.Update,
		ev.Duration.Milliseconds(), errText, created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns the last limit events, oldest first. An empty session
// matches every session.
func (s *Store) Recent(ctx context.Context, session string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, turn_id, kind, strategy, state, decision, iteration, log_len,
			prompt_len, tool_name, tool_call_id, detail, duration_ms, error, created_at
		FROM events
		WHERE (? = '' OR session = ?)
		ORDER BY id DESC
		LIMIT ?`, session, session, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var durationMS int64
		var created string
		if err := rows.Scan(&r.ID, &r.Session, &r.TurnID, &r.Kind, &r.Strategy, &r.State, &r.Decision,
			&r.Iteration, &r.LogLen, &r.PromptLen, &r.ToolName, &r.ToolCallID, &r.Detail,
			&durationMS, &r.Error, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// TurnSummary aggregates the events of one turn.
type TurnSummary struct {
	TurnID     string
	Session    string
	Strategy   string
	ModelCalls int
	ToolCalls  int
	ToolErrors int
	Compacted  bool
	Failed     bool
	FinalLen   int
}

// Turns returns per-turn summaries of the last limit turns, oldest first.
func (s *Store) Turns(ctx context.Context, limit int) ([]TurnSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, MIN(session), MIN(strategy),
			SUM(kind = ?), SUM(kind = ?), SUM(kind = ? AND error != ''),
			MAX(kind = ?), MAX(kind = ?),
			(SELECT e2.log_len FROM events e2 WHERE e2.turn_id = e.turn_id ORDER BY e2.id DESC LIMIT 1)
		FROM events e
		GROUP BY turn_id
		ORDER BY MAX(id) DESC
		LIMIT ?`,
		string(agent.EventModelReplied), string(agent.EventToolResult), string(agent.EventToolResult),
		string(agent.EventCompacted), string(agent.EventTurnFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnSummary
	for rows.Next() {
		var t TurnSummary
		if err := rows.Scan(&t.TurnID, &t.Session, &t.Strategy, &t.ModelCalls, &t.ToolCalls,
			&t.ToolErrors, &t.Compacted, &t.Failed, &t.FinalLen); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
