// Package store persists generated memos.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
)

// createdLayout is fixed width so text order matches time order.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("memo not found")

// Store saves and lists memos.
type Store interface {
	Save(ctx context.Context, m *memo.Memo) (string, error)
	List(ctx context.Context, userID string) ([]*memo.Memo, error)
	Get(ctx context.Context, id string) (*memo.Memo, error)
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS memos (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		content    TEXT NOT NULL,
		book_id    TEXT,
		topic      TEXT NOT NULL,
		subject    TEXT,
		sections   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memos_user_created ON memos(user_id, created_at DESC);
	`)
	return err
}

// Save inserts or replaces m and returns its id. A memo without an id gets
// a new ULID.
func (s *SQLiteStore) Save(ctx context.Context, m *memo.Memo) (string, error) {
	if m == nil {
		return "", errors.New("nil memo")
	}
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	sections, err := json.Marshal(m.Sections)
	if err != nil {
		return "", fmt.Errorf("marshal sections: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memos (id, user_id, content, book_id, topic, subject, sections, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Content, nullable(m.BookID), m.Metadata.Topic, nullable(m.Metadata.Subject),
		string(sections), m.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert memo: %w", err)
	}
	return m.ID, nil
}

// List returns userID's memos, newest first.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]*memo.Memo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, book_id, topic, subject, sections, created_at
		FROM memos WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query memos: %w", err)
	}
	defer rows.Close()

	var out []*memo.Memo
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get returns one memo.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*memo.Memo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, book_id, topic, subject, sections, created_at
		FROM memos WHERE id = ?`, id)
	m, err := scanMemo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemo(sc scanner) (*memo.Memo, error) {
	var (
		m                 memo.Memo
		bookID, subject   sql.NullString
		sections, created string
	)
	if err := sc.Scan(&m.ID, &m.UserID, &m.Content, &bookID, &m.Metadata.Topic, &subject, &sections, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan memo: %w", err)
	}
	m.BookID = bookID.String
	m.Metadata.Subject = subject.String

	if err := json.Unmarshal([]byte(sections), &m.Sections); err != nil {
		return nil, fmt.Errorf("decode sections of %s: %w", m.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("decode created_at of %s: %w", m.ID, err)
	}
	m.CreatedAt = t
	return &m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
