// Package session is the coordinator side of recordsteps: a SQLite
// store of sessions, steps and the singleton recording state, plus the
// control surfaces (HTTP API, websocket stream, MCP tools) the panel
// and agent tooling drive recording through.
//
// Page engines never import this package's service types directly;
// they observe recording state through the StateFeed and deliver
// records through the StoreSink, both of which speak the narrow
// contracts in step and recorder/sink.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harrydbarnes/recordsteps/dbopen"
	"github.com/harrydbarnes/recordsteps/step"
)

// Schema is the session store DDL. Applied through dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	started_at_ms INTEGER NOT NULL,
	ended_at_ms   INTEGER,
	start_url     TEXT NOT NULL DEFAULT '',
	verbosity     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	type             TEXT NOT NULL,
	relative_time_ms INTEGER NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	payload          TEXT NOT NULL,
	created_at       INTEGER NOT NULL,
	UNIQUE (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_steps_session ON steps(session_id, seq);

CREATE TABLE IF NOT EXISTS recording_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	active        INTEGER NOT NULL DEFAULT 0,
	session_id    TEXT,
	started_at_ms INTEGER,
	verbosity     INTEGER NOT NULL DEFAULT 0,
	version       INTEGER NOT NULL DEFAULT 0,
	updated_at    INTEGER NOT NULL
);

INSERT OR IGNORE INTO recording_state (id, active, verbosity, version, updated_at)
VALUES (1, 0, 0, 0, 0);
`

// ErrNotFound is returned for lookups of sessions that do not exist.
var ErrNotFound = errors.New("session: not found")

// Session is one recording run as persisted by the store.
type Session struct {
	ID          string `json:"id"`
	StartedAtMs int64  `json:"started_at_ms"`
	EndedAtMs   int64  `json:"ended_at_ms,omitempty"`
	StartURL    string `json:"start_url,omitempty"`
	Verbosity   int    `json:"verbosity"`
	StepCount   int    `json:"step_count"`
}

// Store wraps the session database. All methods are safe for
// concurrent use; SQLite serialises writers underneath.
type Store struct {
	DB *sql.DB
}

// NewStore wraps an already-opened database. The caller applies Schema
// (normally via dbopen.WithSchema(session.Schema)).
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// InsertSession creates a session row.
func (s *Store) InsertSession(ctx context.Context, sess *Session) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at_ms, start_url, verbosity, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAtMs, sess.StartURL, sess.Verbosity, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("session: insert session: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(ctx context.Context, id string, endedAtMs int64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sessions SET ended_at_ms = ? WHERE id = ?`, endedAtMs, id)
	if err != nil {
		return fmt.Errorf("session: end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession retrieves one session with its step count.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT s.id, s.started_at_ms, COALESCE(s.ended_at_ms, 0), s.start_url, s.verbosity,
		        (SELECT COUNT(*) FROM steps WHERE session_id = s.id)
		 FROM sessions s WHERE s.id = ?`, id)
	sess := &Session{}
	err := row.Scan(&sess.ID, &sess.StartedAtMs, &sess.EndedAtMs, &sess.StartURL,
		&sess.Verbosity, &sess.StepCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT s.id, s.started_at_ms, COALESCE(s.ended_at_ms, 0), s.start_url, s.verbosity,
		        (SELECT COUNT(*) FROM steps WHERE session_id = s.id)
		 FROM sessions s ORDER BY s.started_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("session: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.StartedAtMs, &sess.EndedAtMs, &sess.StartURL,
			&sess.Verbosity, &sess.StepCount); err != nil {
			return nil, fmt.Errorf("session: scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and (via cascade) its steps.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("session: delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendStep persists one record under the given session, assigning the
// next per-session sequence number inside a transaction. Page engines
// and API handlers share the database, so the transaction retries on
// SQLITE_BUSY. The record is returned with ID, SessionID and Seq
// filled in.
func (s *Store) AppendStep(ctx context.Context, sessionID, stepID string, rec step.Record) (step.Record, error) {
	rec.ID = stepID
	rec.SessionID = sessionID

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var seq uint64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE session_id = ?`, sessionID).Scan(&seq)
		if err != nil {
			return fmt.Errorf("next seq: %w", err)
		}
		rec.Seq = seq

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (id, session_id, seq, type, relative_time_ms, url, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, sessionID, seq, string(rec.Type), rec.RelativeTimeMs, rec.URL,
			string(payload), time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return rec, fmt.Errorf("session: append step: %w", err)
	}
	return rec, nil
}

// Steps returns a session's records in sequence order.
func (s *Store) Steps(ctx context.Context, sessionID string) ([]step.Record, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT payload FROM steps WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: steps: %w", err)
	}
	defer rows.Close()

	var out []step.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("session: steps: scan: %w", err)
		}
		var rec step.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("session: steps: unmarshal: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StepCount returns how many steps a session holds.
func (s *Store) StepCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM steps WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("session: step count: %w", err)
	}
	return n, nil
}

// State reads the singleton recording state.
func (s *Store) State(ctx context.Context) (step.State, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT active, COALESCE(session_id, ''), COALESCE(started_at_ms, 0), verbosity
		 FROM recording_state WHERE id = 1`)
	var st step.State
	var active int
	var verbosity int
	if err := row.Scan(&active, &st.SessionID, &st.StartedAtMs, &verbosity); err != nil {
		return st, fmt.Errorf("session: read state: %w", err)
	}
	st.Active = active != 0
	st.Verbosity = step.Verbosity(verbosity).Clamp()
	return st, nil
}

// SetState overwrites the singleton recording state and bumps its
// version counter, which is what the StateFeed's watcher polls.
// PRAGMA data_version will not do here: it never changes for writes
// made on the watcher's own connection.
func (s *Store) SetState(ctx context.Context, st step.State) error {
	active := 0
	if st.Active {
		active = 1
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE recording_state
		 SET active = ?, session_id = ?, started_at_ms = ?, verbosity = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = 1`,
		active, nullable(st.SessionID), st.StartedAtMs, int(st.Verbosity.Clamp()),
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("session: set state: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
