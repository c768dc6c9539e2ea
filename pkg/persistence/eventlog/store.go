package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/moviechat/pkg/events"
)

// Store persists chat events to SQLite for later inspection.
type Store struct {
	db *sql.DB
}

// Query filters List. Zero values mean no filter; Limit defaults to 200.
type Query struct {
	SessionID string
	Type      events.Type
	Limit     int
}

// DSNForFile is the read-write connection string used for the log file.
func DSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("event log: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func NewStore(path string) (*Store, error) {
	dsn, err := DSNForFile(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			tool TEXT NOT NULL DEFAULT '',
			arguments_json TEXT NOT NULL DEFAULT '{}',
			text TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS chat_events_by_session ON chat_events(session_id, created_at_ms);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "event log: migrate")
		}
	}
	return nil
}

// Log stores e. Replaying the same event ID is a no-op.
func (s *Store) Log(ctx context.Context, e events.Event) error {
	if e.ID == "" {
		return errors.New("event log: event without id")
	}
	args := "{}"
	if len(e.Arguments) > 0 {
		b, err := json.Marshal(e.Arguments)
		if err != nil {
			return errors.Wrap(err, "event log: encode arguments")
		}
		args = string(b)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_events(id, session_id, type, tool, arguments_json, text, error, created_at_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.ID, e.SessionID, string(e.Type), e.Tool, args, e.Text, e.Error, created.UnixMilli())
	return errors.Wrap(err, "event log: insert")
}

// List returns matching events, oldest first.
func (s *Store) List(ctx context.Context, q Query) ([]events.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	where := []string{"1=1"}
	var args []any
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, session_id, type, tool, arguments_json, text, error, created_at_ms
		FROM chat_events
		WHERE %s
		ORDER BY created_at_ms ASC, rowid ASC
		LIMIT ?`, strings.Join(where, " AND ")), args...)
	if err != nil {
		return nil, errors.Wrap(err, "event log: query")
	}
	defer func() { _ = rows.Close() }()

	var ret []events.Event
	for rows.Next() {
		var (
			e         events.Event
			typ       string
			argsJSON  string
			createdMs int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &typ, &e.Tool, &argsJSON, &e.Text, &e.Error, &createdMs); err != nil {
			return nil, errors.Wrap(err, "event log: scan")
		}
		e.Type = events.Type(typ)
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		if argsJSON != "" && argsJSON != "{}" {
			if err := json.Unmarshal([]byte(argsJSON), &e.Arguments); err != nil {
				return nil, errors.Wrapf(err, "event log: decode arguments of %s", e.ID)
			}
		}
		ret = append(ret, e)
	}
	return ret, errors.Wrap(rows.Err(), "event log: rows")
}

// Subscribe logs every event published on bus until ctx is done.
func (s *Store) Subscribe(ctx context.Context, bus *events.Bus) error {
	return bus.Subscribe(ctx, "eventlog", func(ctx context.Context, e events.Event) error {
		return s.Log(ctx, e)
	})
}
