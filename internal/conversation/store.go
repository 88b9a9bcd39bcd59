package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a thread does not exist.
var ErrNotFound = errors.New("not found")

// Store persists threads and messages in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a conversation store on an existing database
// connection. The schema is created automatically on first use.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger.With("component", "conversation_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_threads_client ON threads(client_id, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			thread_id TEXT NOT NULL DEFAULT '',
			speaker TEXT NOT NULL,
			content TEXT NOT NULL,
			mentions_coach INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_client ON messages(client_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);
	`)
	return err
}

// CreateThread starts a new thread for a client.
func (s *Store) CreateThread(ctx context.Context, clientID, title string) (*Thread, error) {
	now := s.now()
	id, _ := uuid.NewV7()
	th := &Thread{ID: id.String(), ClientID: clientID, Title: title, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, client_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, th.ID, clientID, title, now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return th, nil
}

// GetThread returns a thread or ErrNotFound.
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	var (
		th                   Thread
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, title, created_at, updated_at FROM threads WHERE id = ?
	`, id).Scan(&th.ID, &th.ClientID, &th.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	th.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	th.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &th, nil
}

// SetThreadTitle renames a thread.
func (s *Store) SetThreadTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE threads SET title = ?, updated_at = ? WHERE id = ?`,
		title, s.now().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update thread title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	return nil
}

// Threads lists a client's threads, most recently active first.
func (s *Store) Threads(ctx context.Context, clientID string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, title, created_at, updated_at FROM threads
		WHERE client_id = ? ORDER BY updated_at DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var (
			th                   Thread
			createdAt, updatedAt string
		)
		if err := rows.Scan(&th.ID, &th.ClientID, &th.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		th.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		th.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
		threads = append(threads, th)
	}
	return threads, rows.Err()
}

// AddMessage persists a message. ID and CreatedAt are assigned when zero.
// The returned copy carries the stored values.
func (s *Store) AddMessage(ctx context.Context, msg Message) (*Message, error) {
	if !msg.Speaker.Valid() {
		return nil, fmt.Errorf("invalid speaker %q", msg.Speaker)
	}
	if msg.ID == "" {
		id, _ := uuid.NewV7()
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, client_id, thread_id, speaker, content, mentions_coach, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ClientID, msg.ThreadID, msg.Speaker, msg.Content, msg.MentionsCoach,
		msg.CreatedAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if msg.ThreadID != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`,
			msg.CreatedAt.Format(timeFormat), msg.ThreadID); err != nil {
			return nil, fmt.Errorf("touch thread: %w", err)
		}
	}
	return &msg, nil
}

// Recent returns up to limit messages newest first. When threadID is
// non-empty only that thread is scanned. A non-positive limit means no
// limit.
func (s *Store) Recent(ctx context.Context, clientID, threadID string, limit int) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE client_id = ?`
	args := []any{clientID}
	if threadID != "" {
		query += ` AND thread_id = ?`
		args = append(args, threadID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryMessages(ctx, query, args...)
}

// Since returns the client's messages created strictly after t, oldest
// first. A zero t returns the full history.
func (s *Store) Since(ctx context.Context, clientID string, t time.Time) ([]Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE client_id = ? AND created_at > ?
		ORDER BY created_at, id
	`, clientID, t.UTC().Format(timeFormat))
}

// Activity is the latest message time per client.
type Activity struct {
	ClientID    string
	LastMessage time.Time
}

// LatestActivity reports every client's most recent message time.
func (s *Store) LatestActivity(ctx context.Context) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, MAX(created_at) FROM messages GROUP BY client_id ORDER BY client_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var (
			a    Activity
			last string
		)
		if err := rows.Scan(&a.ClientID, &last); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.LastMessage, _ = time.Parse(timeFormat, last)
		out = append(out, a)
	}
	return out, rows.Err()
}

const messageColumns = `id, client_id, thread_id, speaker, content, mentions_coach, created_at`

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.ClientID, &m.ThreadID, &m.Speaker, &m.Content,
			&m.MentionsCoach, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
