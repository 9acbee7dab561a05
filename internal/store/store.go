package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ErrUnknownKey is returned for setting keys flowctl does not know about.
var ErrUnknownKey = errors.New("unknown setting")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store provides access to the local flowctl database: settings and the
// task history.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.Up(s.db, "migrations")
}

// Get returns the value of a setting and whether it is set.
func (s *Store) Get(key string) (string, bool, error) {
	return s.get(context.Background(), key)
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	if !ValidKey(key) {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a setting. Setting the auth token to an empty value removes it,
// so no empty bearer token is ever stored.
func (s *Store) Set(key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	value = strings.TrimSpace(value)
	if key == KeyAuthToken && value == "" {
		return s.Delete(key)
	}
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a setting. Removing an unset key is not an error.
func (s *Store) Delete(key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Token returns the stored bearer token, or "" when none is set. It is read
// on every call, so a token changed mid-session applies to the next request.
func (s *Store) Token(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, KeyAuthToken)
	return v, err
}

// BaseURL returns the stored server URL, or "" when none is set.
func (s *Store) BaseURL() (string, error) {
	v, _, err := s.Get(KeyAPIURL)
	return v, err
}

// Record appends a history entry.
func (s *Store) Record(taskID, name string, action Action, baseURL string) (*Entry, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO history (task_id, name, action, base_url, timestamp) VALUES (?, ?, ?, ?, ?)`,
		taskID, name, string(action), baseURL, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Entry{ID: id, TaskID: taskID, Name: name, Action: action, BaseURL: baseURL, Timestamp: now}, nil
}

// Recent returns up to limit history entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryHistory(`SELECT id, task_id, name, action, base_url, timestamp FROM history ORDER BY id DESC LIMIT ?`, limit)
}

// History returns every entry for one task, oldest first.
func (s *Store) History(taskID string) ([]Entry, error) {
	return s.queryHistory(`SELECT id, task_id, name, action, base_url, timestamp FROM history WHERE task_id = ? ORDER BY id`, taskID)
}

func (s *Store) queryHistory(query string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Name, &action, &e.BaseURL, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
