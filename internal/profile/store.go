package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/thinkpartner/internal/prompts"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a client or methodology does not exist.
var ErrNotFound = errors.New("not found")

// Store persists client profiles in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a profile store on an existing database connection.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "profile_store")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS client_prompts (
			client_id TEXT PRIMARY KEY,
			role_prompt TEXT NOT NULL,
			task_prompt TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS methodologies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS client_methodologies (
			client_id TEXT NOT NULL,
			methodology_id TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (client_id, methodology_id)
		);

		CREATE TABLE IF NOT EXISTS reference_materials (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reference_client ON reference_materials(client_id, created_at);

		CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			object_ref TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			filename TEXT NOT NULL,
			extracted_text TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_attachments_client ON attachments(client_id, created_at);
	`)
	return err
}

// CreateClient registers a new client with default prompts.
func (s *Store) CreateClient(ctx context.Context, name, email string) (*Client, error) {
	now := time.Now().UTC()
	id, _ := uuid.NewV7()
	c := &Client{ID: id.String(), Name: name, Email: email, CreatedAt: now}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, email, created_at) VALUES (?, ?, ?, ?)
	`, c.ID, name, email, now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	s.logger.Info("client created", "client", c.ID, "name", name)
	return c, nil
}

// GetClient returns a client or ErrNotFound.
func (s *Store) GetClient(ctx context.Context, id string) (*Client, error) {
	var (
		c         Client
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM clients WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query client: %w", err)
	}
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &c, nil
}

// Clients lists every client by name.
func (s *Store) Clients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, created_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var (
			c         Client
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Prompts returns the client's role and task prompts, falling back to
// the default seeds when none have been saved.
func (s *Store) Prompts(ctx context.Context, clientID string) (Prompts, error) {
	var p Prompts
	err := s.db.QueryRowContext(ctx, `
		SELECT role_prompt, task_prompt FROM client_prompts WHERE client_id = ?
	`, clientID).Scan(&p.Role, &p.Task)
	if err == sql.ErrNoRows {
		return Prompts{Role: prompts.DefaultRolePrompt(), Task: prompts.DefaultTaskPrompt()}, nil
	}
	if err != nil {
		return Prompts{}, fmt.Errorf("query prompts: %w", err)
	}
	return p, nil
}

// SetRolePrompt replaces the client's role prompt.
func (s *Store) SetRolePrompt(ctx context.Context, clientID, text string) error {
	return s.setPrompt(ctx, clientID, "role_prompt", text)
}

// SetTaskPrompt replaces the client's task prompt.
func (s *Store) SetTaskPrompt(ctx context.Context, clientID, text string) error {
	return s.setPrompt(ctx, clientID, "task_prompt", text)
}

// setPrompt upserts one prompt column, seeding the other from defaults
// when the row is new. column is never user input.
func (s *Store) setPrompt(ctx context.Context, clientID, column, text string) error {
	current, err := s.Prompts(ctx, clientID)
	if err != nil {
		return err
	}
	switch column {
	case "role_prompt":
		current.Role = text
	case "task_prompt":
		current.Task = text
	default:
		return fmt.Errorf("unknown prompt column %q", column)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_prompts (client_id, role_prompt, task_prompt, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE
		SET role_prompt = excluded.role_prompt, task_prompt = excluded.task_prompt,
		    updated_at = excluded.updated_at
	`, clientID, current.Role, current.Task, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("save %s: %w", column, err)
	}
	return nil
}

// AddMethodology registers a framework, replacing one with the same name.
func (s *Store) AddMethodology(ctx context.Context, name, content string) (*Methodology, error) {
	id, _ := uuid.NewV7()
	m := &Methodology{ID: id.String(), Name: name, Content: content, Enabled: true}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO methodologies (id, name, content, enabled) VALUES (?, ?, ?, 1)
		ON CONFLICT (name) DO UPDATE SET content = excluded.content
		RETURNING id, enabled
	`, m.ID, name, content).Scan(&m.ID, &m.Enabled)
	if err != nil {
		return nil, fmt.Errorf("upsert methodology: %w", err)
	}
	return m, nil
}

// SetMethodologyEnabled toggles a framework globally.
func (s *Store) SetMethodologyEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE methodologies SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("update methodology: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("methodology %s: %w", id, ErrNotFound)
	}
	return nil
}

// AssignMethodology links a framework to a client and sets whether it is
// enabled for that client.
func (s *Store) AssignMethodology(ctx context.Context, clientID, methodologyID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_methodologies (client_id, methodology_id, enabled) VALUES (?, ?, ?)
		ON CONFLICT (client_id, methodology_id) DO UPDATE SET enabled = excluded.enabled
	`, clientID, methodologyID, enabled)
	if err != nil {
		return fmt.Errorf("assign methodology: %w", err)
	}
	return nil
}

// ActiveMethodologies returns the frameworks enabled both globally and
// for the client, ordered by name.
func (s *Store) ActiveMethodologies(ctx context.Context, clientID string) ([]Methodology, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name, m.content, m.enabled
		FROM methodologies m
		JOIN client_methodologies cm ON cm.methodology_id = m.id
		WHERE cm.client_id = ? AND cm.enabled = 1 AND m.enabled = 1
		ORDER BY m.name
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query methodologies: %w", err)
	}
	defer rows.Close()

	var out []Methodology
	for rows.Next() {
		var m Methodology
		if err := rows.Scan(&m.ID, &m.Name, &m.Content, &m.Enabled); err != nil {
			return nil, fmt.Errorf("scan methodology: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddReference attaches reference material to a client.
func (s *Store) AddReference(ctx context.Context, clientID, title, body string) (*Reference, error) {
	now := time.Now().UTC()
	id, _ := uuid.NewV7()
	r := &Reference{ID: id.String(), ClientID: clientID, Title: title, Body: body, CreatedAt: now}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_materials (id, client_id, title, body, created_at) VALUES (?, ?, ?, ?, ?)
	`, r.ID, clientID, title, body, now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert reference: %w", err)
	}
	return r, nil
}

// References returns the client's reference material, oldest first.
func (s *Store) References(ctx context.Context, clientID string) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, title, body, created_at FROM reference_materials
		WHERE client_id = ? ORDER BY created_at, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var (
			r         Reference
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Title, &r.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddAttachment records an uploaded file and its extracted text.
func (s *Store) AddAttachment(ctx context.Context, a Attachment) (*Attachment, error) {
	if a.ID == "" {
		id, _ := uuid.NewV7()
		a.ID = id.String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, client_id, object_ref, mime_type, filename, extracted_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ClientID, a.ObjectRef, a.MimeType, a.Filename, a.ExtractedText,
		a.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert attachment: %w", err)
	}
	return &a, nil
}

// Attachments returns the client's attachments, oldest first.
func (s *Store) Attachments(ctx context.Context, clientID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, object_ref, mime_type, filename, extracted_text, created_at
		FROM attachments WHERE client_id = ? ORDER BY created_at, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		var (
			a         Attachment
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.ClientID, &a.ObjectRef, &a.MimeType, &a.Filename,
			&a.ExtractedText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
