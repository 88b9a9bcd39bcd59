// Package opstate is a namespaced key-value store for operational
// bookkeeping such as synthesis checkpoints. Domain data with real
// structure (documents, messages, profiles) has its own store.
package opstate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// timeFormat keeps stored times sortable as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store is a namespaced key-value store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates an operational state store on an existing database
// connection. The schema is created automatically.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "opstate")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS operational_state (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`)
	return err
}

// Get returns the stored value for a namespace/key pair, or "" when the
// key does not exist.
func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM operational_state WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Set upserts a namespace/key/value triple.
func (s *Store) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operational_state (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE
		 SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes a namespace/key entry. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM operational_state WHERE namespace = ? AND key = ?`,
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// List returns all key/value pairs for a namespace. The map is non-nil.
func (s *Store) List(ctx context.Context, namespace string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM operational_state WHERE namespace = ? ORDER BY key`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", namespace, err)
		}
		result[k] = v
	}
	return result, rows.Err()
}

// Time returns a timestamp stored with SetTime. ok is false when the key
// is missing.
func (s *Store) Time(ctx context.Context, namespace, key string) (t time.Time, ok bool, err error) {
	v, err := s.Get(ctx, namespace, key)
	if err != nil || v == "" {
		return time.Time{}, false, err
	}
	t, err = time.Parse(timeFormat, v)
	if err != nil {
		s.logger.Warn("unparseable timestamp in operational state",
			"namespace", namespace, "key", key, "value", v)
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// Times returns every timestamp in namespace keyed by key. Entries that
// do not parse are logged and skipped.
func (s *Store) Times(ctx context.Context, namespace string) (map[string]time.Time, error) {
	raw, err := s.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(raw))
	for k, v := range raw {
		t, err := time.Parse(timeFormat, v)
		if err != nil {
			s.logger.Warn("unparseable timestamp in operational state",
				"namespace", namespace, "key", k, "value", v)
			continue
		}
		out[k] = t
	}
	return out, nil
}

// SetTime stores a timestamp in UTC.
func (s *Store) SetTime(ctx context.Context, namespace, key string, t time.Time) error {
	return s.Set(ctx, namespace, key, t.UTC().Format(timeFormat))
}
