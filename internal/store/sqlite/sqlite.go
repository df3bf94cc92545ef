// Package sqlite provides the durable store.Store implementation backed by a
// single-file sqlite database. Event-log blobs are snappy-compressed on the
// way in so long histories stay cheap to persist.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	_ "modernc.org/sqlite"

	"puzzlearena/core/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_logs (
	id         TEXT PRIMARY KEY,
	log        BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store persists event logs in a sqlite table keyed by entity id.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures optional Store behaviour at construction time.
type Option func(*Store)

// WithClock overrides the timestamp source recorded on writes.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Open initialises the database at path (use ":memory:" for tests) and
// ensures the schema exists.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path must be provided")
	}
	dsn := path
	if path == ":memory:" {
		//1.- Share the in-memory database across pooled connections so tests see one store.
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	//2.- sqlite allows a single writer; serialize access through one pooled connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Exists reports whether a record is present for the id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM player_logs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check record %q: %w", id, err)
	}
	return true, nil
}

// Create inserts a brand-new record, failing with store.ErrAlreadyExists when
// the id is already taken. The conflict clause makes the existence check and
// the insert a single statement, narrowing the double-register race window.
func (s *Store) Create(ctx context.Context, id string, blob []byte) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO player_logs (id, log, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, snappy.Encode(nil, blob), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create record %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create record %q: %w", id, err)
	}
	if affected == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// Save upserts the record; last writer wins.
func (s *Store) Save(ctx context.Context, id string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_logs (id, log, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET log = excluded.log, updated_at = excluded.updated_at`,
		id, snappy.Encode(nil, blob), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save record %q: %w", id, err)
	}
	return nil
}

// Load returns the decompressed blob or store.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT log FROM player_logs WHERE id = ?`, id).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %q: %w", id, err)
	}
	blob, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress record %q: %w", id, err)
	}
	return blob, nil
}

// ForEach visits every record in ascending id order until fn returns false.
func (s *Store) ForEach(ctx context.Context, fn func(id string, blob []byte) bool) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, log FROM player_logs ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id         string
			compressed []byte
		)
		if err := rows.Scan(&id, &compressed); err != nil {
			return fmt.Errorf("scan record row: %w", err)
		}
		blob, err := snappy.Decode(nil, compressed)
		if err != nil {
			return fmt.Errorf("decompress record %q: %w", id, err)
		}
		if !fn(id, blob) {
			return nil
		}
	}
	return rows.Err()
}
