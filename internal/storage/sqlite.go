package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ragstore/internal/vector"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, rserr.Wrap(err, rserr.CodeConfigInvalidValue, "failed to create database directory", rserr.Field("path", dir))
		}
	}
	// busy_timeout is per connection, so it goes in the DSN rather than a PRAGMA.
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, rserr.Wrap(err, rserr.CodeBackendUnavailable, "failed to open database", rserr.Field("path", dbPath))
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, rserr.Wrap(err, rserr.CodeBackendUnavailable, "failed to initialize schema", rserr.Field("path", dbPath))
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_classes (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL,
		properties TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		class TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_class_seq ON entries(class, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// EnsureClass inserts the class if no class of that name exists. The insert is
// atomic, so concurrent callers see exactly one creation.
func (s *SQLiteStorage) EnsureClass(ctx context.Context, class Class) (bool, error) {
	props, err := json.Marshal(class.Properties)
	if err != nil {
		return false, rserr.Wrap(err, rserr.CodeConfigInvalidValue, "failed to marshal class properties")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_classes (name, dimensions, properties, created_at) VALUES (?, ?, ?, ?)`,
		class.Name, class.Dimensions, string(props), time.Now().UTC(),
	)
	if err != nil {
		return false, rserr.Transport(err, "create class", rserr.Field("class", class.Name))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, rserr.Wrap(err, rserr.CodeBackendUnavailable, "create class rows affected")
	}
	return n == 1, nil
}

// GetClass returns the named class or a schema-not-found error.
func (s *SQLiteStorage) GetClass(ctx context.Context, name string) (*Class, error) {
	var (
		c     = Class{Name: name}
		props string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions, properties, created_at FROM schema_classes WHERE name = ?`, name,
	).Scan(&c.Dimensions, &props, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rserr.New(rserr.CodeStoreSchemaNotFound, "class not found", rserr.Field("class", name))
	}
	if err != nil {
		return nil, rserr.Transport(err, "get class", rserr.Field("class", name))
	}
	if err := json.Unmarshal([]byte(props), &c.Properties); err != nil {
		return nil, rserr.Wrap(err, rserr.CodeBackendResponseInvalid, "failed to unmarshal class properties")
	}
	return &c, nil
}

// InsertEntries stores entries in one transaction; either all are stored or none.
func (s *SQLiteStorage) InsertEntries(ctx context.Context, class string, entries []StoredEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rserr.Transport(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, class, content, metadata, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return rserr.Transport(err, "prepare insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return rserr.Wrap(err, rserr.CodeInputEmptyDocument, "failed to marshal metadata", rserr.Field("id", e.ID))
		}
		if _, err := stmt.ExecContext(ctx, e.ID, class, e.Text, string(meta), vector.Encode(e.Vector)); err != nil {
			return rserr.Transport(err, "insert entry", rserr.Field("id", e.ID))
		}
	}
	if err := tx.Commit(); err != nil {
		return rserr.Transport(err, "commit entries")
	}
	return nil
}

// ListEntries returns all entries of class ordered by seq.
func (s *SQLiteStorage) ListEntries(ctx context.Context, class string) ([]StoredEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, content, metadata, vector FROM entries WHERE class = ? ORDER BY seq`, class)
	if err != nil {
		return nil, rserr.Transport(err, "list entries")
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetEntries returns the entries with the given ids.
func (s *SQLiteStorage) GetEntries(ctx context.Context, class string, ids []string) (map[string]StoredEntry, error) {
	out := make(map[string]StoredEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, class)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT seq, id, content, metadata, vector FROM entries WHERE class = ? AND id IN (?` +
		strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rserr.Transport(err, "get entries")
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.ID] = e
	}
	return out, nil
}

func scanEntries(rows *sql.Rows) ([]StoredEntry, error) {
	var out []StoredEntry
	for rows.Next() {
		var (
			e    StoredEntry
			meta sql.NullString
			vec  []byte
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Text, &meta, &vec); err != nil {
			return nil, rserr.Wrap(err, rserr.CodeBackendResponseInvalid, "scan entry")
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			m, err := decodeMetadata(meta.String)
			if err != nil {
				return nil, rserr.Wrap(err, rserr.CodeBackendResponseInvalid, "failed to unmarshal metadata", rserr.Field("id", e.ID))
			}
			e.Metadata = m
		}
		e.Vector = vector.Decode(vec)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, rserr.Transport(err, "iterate entries")
	}
	return out, nil
}

// decodeMetadata restores integral numbers as int and the rest as float64.
func decodeMetadata(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		m[k] = restoreNumbers(v)
	}
	return m, nil
}

func restoreNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 0); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = restoreNumbers(inner)
		}
	case []any:
		for i, inner := range t {
			t[i] = restoreNumbers(inner)
		}
	}
	return v
}

// DeleteAll removes every entry of class. The class schema is kept.
func (s *SQLiteStorage) DeleteAll(ctx context.Context, class string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE class = ?`, class); err != nil {
		return rserr.Transport(err, "delete entries", rserr.Field("class", class))
	}
	return nil
}

// Count returns the number of entries in class.
func (s *SQLiteStorage) Count(ctx context.Context, class string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE class = ?`, class).Scan(&n); err != nil {
		return 0, rserr.Transport(err, "count entries")
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
