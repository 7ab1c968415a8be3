// Package storage provides SQLite-backed persistence for parsed catalogs,
// search runs and "transiting now" messages.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bmorris3/transitephem/internal/catalog"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db           *sql.DB
	maxSnapshots int
}

// New opens or creates the SQLite database at dbPath, keeping at most
// maxSnapshots parsed catalogs. An empty dbPath defaults to
// $TMPDIR/transitephem/data.db.
func New(maxSnapshots int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "transitephem", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if maxSnapshots <= 0 {
		maxSnapshots = 3
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxSnapshots: maxSnapshots}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_snapshots (
			fetched_at  INTEGER PRIMARY KEY,
			source      TEXT NOT NULL,
			planets     INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_records (
			fetched_at  INTEGER NOT NULL REFERENCES catalog_snapshots(fetched_at) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			record      TEXT NOT NULL,
			PRIMARY KEY (fetched_at, name)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER NOT NULL,
			window_start  REAL NOT NULL,
			window_end    REAL NOT NULL,
			bodies        INTEGER NOT NULL,
			nights        INTEGER NOT NULL,
			events        INTEGER NOT NULL,
			never_up      TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS now_messages (
			id          TEXT PRIMARY KEY,
			minute      INTEGER NOT NULL,
			body        TEXT NOT NULL,
			mid_jd      REAL NOT NULL,
			text        TEXT NOT NULL,
			egress      INTEGER NOT NULL,
			created_at  INTEGER NOT NULL,
			sent        INTEGER NOT NULL DEFAULT 0,
			expired     INTEGER NOT NULL DEFAULT 0,
			UNIQUE (body, mid_jd)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_now_messages_minute ON now_messages(minute)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveCatalog stores a parsed catalog under its download time, replacing any
// earlier copy for the same time, and drops the oldest snapshots beyond the limit.
func (s *Storage) SaveCatalog(ctx context.Context, source string, fetchedAt time.Time, records map[string]catalog.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key := fetchedAt.Unix()
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_snapshots WHERE fetched_at = ?`, key); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_snapshots (fetched_at, source, planets, created_at) VALUES (?,?,?,?)`,
		key, source, len(records), time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO catalog_records (fetched_at, name, record) VALUES (?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for name, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, key, name, string(data)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM catalog_snapshots WHERE fetched_at NOT IN (
			SELECT fetched_at FROM catalog_snapshots ORDER BY fetched_at DESC LIMIT ?
		)`, s.maxSnapshots); err != nil {
		return fmt.Errorf("failed to rotate snapshots: %w", err)
	}
	return tx.Commit()
}

// LoadCatalog returns the snapshot stored for fetchedAt. The boolean is false
// when there is none.
func (s *Storage) LoadCatalog(ctx context.Context, fetchedAt time.Time) (map[string]catalog.Record, bool, error) {
	var planets int
	err := s.db.QueryRowContext(ctx,
		`SELECT planets FROM catalog_snapshots WHERE fetched_at = ?`, fetchedAt.Unix(),
	).Scan(&planets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, record FROM catalog_records WHERE fetched_at = ?`, fetchedAt.Unix())
	if err != nil {
		return nil, false, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]catalog.Record, planets)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, false, err
		}
		var r catalog.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, false, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		records[name] = r
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(records) != planets {
		return nil, false, fmt.Errorf("snapshot %d is incomplete: %d of %d planets", fetchedAt.Unix(), len(records), planets)
	}
	return records, true, nil
}

// Run is the summary of one search.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	WindowStart float64   `json:"window_start"`
	WindowEnd   float64   `json:"window_end"`
	Bodies      int       `json:"bodies"`
	Nights      int       `json:"nights"`
	Events      int       `json:"events"`
	NeverUp     []string  `json:"never_up"`
}

// AddRun records a run, assigning it an ID when it has none.
func (s *Storage) AddRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	neverUp, err := json.Marshal(run.NeverUp)
	if err != nil {
		return fmt.Errorf("failed to encode never-up list: %w", err)
	}
	if run.NeverUp == nil {
		neverUp = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, started_at, finished_at, window_start, window_end, bodies, nights, events, never_up)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.WindowStart, run.WindowEnd, run.Bodies, run.Nights, run.Events, string(neverUp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to k runs, newest first.
func (s *Storage) RecentRuns(ctx context.Context, k int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, window_start, window_end, bodies, nights, events, never_up
		FROM runs ORDER BY started_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
			neverUp           string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.WindowStart, &r.WindowEnd,
			&r.Bodies, &r.Nights, &r.Events, &neverUp); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		if err := json.Unmarshal([]byte(neverUp), &r.NeverUp); err != nil {
			return nil, fmt.Errorf("failed to decode run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Message is a composed "transiting now" summary.
type Message struct {
	ID      string
	Minute  time.Time // UT minute of mid-transit
	Egress  time.Time // end of the transit; the text is stale afterwards
	Body    string
	MidJD   float64
	Text    string
	Sent    bool
	Expired bool // dropped unsent once the transit was over
}

// AddMessage stores m unless a message for the same body and mid-transit
// already exists. It reports whether m was inserted.
func (s *Storage) AddMessage(ctx context.Context, m *Message) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO now_messages (id, minute, body, mid_jd, text, egress, created_at, sent, expired)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (body, mid_jd) DO NOTHING`,
		m.ID, m.Minute.Unix(), m.Body, m.MidJD, m.Text, m.Egress.Unix(), time.Now().UnixNano(),
		boolToInt(m.Sent), boolToInt(m.Expired),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PendingMessages returns unsent, unexpired messages whose minute is at or
// before until and whose transit has not ended before since, oldest first.
func (s *Storage) PendingMessages(ctx context.Context, since, until time.Time) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, minute, egress, body, mid_jd, text, sent, expired
		FROM now_messages
		WHERE sent = 0 AND expired = 0 AND minute <= ? AND egress >= ?
		ORDER BY minute, body`, until.Unix(), since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m              Message
			minute, egress int64
			sent, expired  int
		)
		if err := rows.Scan(&m.ID, &minute, &egress, &m.Body, &m.MidJD, &m.Text, &sent, &expired); err != nil {
			return nil, err
		}
		m.Minute = time.Unix(minute, 0).UTC()
		m.Egress = time.Unix(egress, 0).UTC()
		m.Sent = sent != 0
		m.Expired = expired != 0
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ExpireMessages flags every unsent message whose transit ended before
// before, so it is never delivered. It returns the number of messages expired.
func (s *Storage) ExpireMessages(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE now_messages SET expired = 1
		WHERE sent = 0 AND expired = 0 AND egress < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// MarkSent flags a message as delivered.
func (s *Storage) MarkSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE now_messages SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %s sent: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s not found", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
