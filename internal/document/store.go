package document

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

// Store persists documents and sections in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a document store on an existing database connection.
// The schema is created automatically on first use.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "document_store")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			previous_content TEXT,
			last_updated_by TEXT NOT NULL,
			pending_review INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id, sort_order);
	`)
	return err
}

// EnsureDocument returns the client's document, creating it with the
// default sections if it does not exist yet.
func (s *Store) EnsureDocument(ctx context.Context, clientID string) (*Document, error) {
	doc, err := s.GetDocument(ctx, clientID)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	id, _ := uuid.NewV7()
	doc = &Document{ID: id.String(), ClientID: clientID, CreatedAt: now, UpdatedAt: now}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO documents (id, client_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, doc.ID, clientID, now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Another writer created it between our read and insert.
		tx.Rollback() //nolint:errcheck
		return s.GetDocument(ctx, clientID)
	}

	for i, d := range defaultSections {
		sid, _ := uuid.NewV7()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections (id, document_id, type, title, content, last_updated_by, sort_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, '', ?, ?, ?, ?)
		`, sid.String(), doc.ID, d.Type, d.Title, AuthorCoach, i, now.Format(timeFormat), now.Format(timeFormat)); err != nil {
			return nil, fmt.Errorf("insert default section %q: %w", d.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("document created", "client", clientID, "document", doc.ID)
	return doc, nil
}

// GetDocument returns the client's document or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, clientID string) (*Document, error) {
	var (
		doc                  Document
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, created_at, updated_at FROM documents WHERE client_id = ?
	`, clientID).Scan(&doc.ID, &doc.ClientID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document for client %s: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	doc.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	doc.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &doc, nil
}

// DeleteDocument removes a client's document and all of its sections.
func (s *Store) DeleteDocument(ctx context.Context, clientID string) error {
	doc, err := s.GetDocument(ctx, clientID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("document deleted", "client", clientID, "document", doc.ID)
	return nil
}

// Sections returns the client's sections in sort order, creating the
// document on first access.
func (s *Store) Sections(ctx context.Context, clientID string) ([]Section, error) {
	doc, err := s.EnsureDocument(ctx, clientID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sectionColumns+` FROM sections
		WHERE document_id = ? ORDER BY sort_order, created_at
	`, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *sec)
	}
	return sections, rows.Err()
}

// GetSection returns a single section or ErrNotFound.
func (s *Store) GetSection(ctx context.Context, id string) (*Section, error) {
	sec, err := scanSection(s.db.QueryRowContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	return sec, err
}

// CreateSection appends a new, empty section to the client's document.
func (s *Store) CreateSection(ctx context.Context, clientID string, typ SectionType, title string) (*Section, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid section type %q", typ)
	}
	doc, err := s.EnsureDocument(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var maxOrder sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sort_order) FROM sections WHERE document_id = ?`, doc.ID,
	).Scan(&maxOrder); err != nil {
		return nil, fmt.Errorf("query sort order: %w", err)
	}

	now := time.Now().UTC()
	id, _ := uuid.NewV7()
	sec := &Section{
		ID:            id.String(),
		DocumentID:    doc.ID,
		Type:          typ,
		Title:         title,
		LastUpdatedBy: AuthorCoach,
		SortOrder:     int(maxOrder.Int64) + 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !maxOrder.Valid {
		sec.SortOrder = 0
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sections (id, document_id, type, title, content, last_updated_by, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?, ?, ?)
	`, sec.ID, sec.DocumentID, sec.Type, sec.Title, sec.LastUpdatedBy, sec.SortOrder,
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert section: %w", err)
	}
	return sec, nil
}

// UpdateSection writes every mutable field of sec.
func (s *Store) UpdateSection(ctx context.Context, sec *Section) error {
	var prev sql.NullString
	if sec.PreviousContent != nil {
		prev = sql.NullString{String: *sec.PreviousContent, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sections
		SET title = ?, content = ?, previous_content = ?, last_updated_by = ?,
		    pending_review = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`, sec.Title, sec.Content, prev, sec.LastUpdatedBy, sec.PendingReview,
		sec.SortOrder, sec.UpdatedAt.UTC().Format(timeFormat), sec.ID)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("section %s: %w", sec.ID, ErrNotFound)
	}
	return nil
}

// DeleteSection removes a section. Only a coach action reaches this.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	return nil
}

const sectionColumns = `id, document_id, type, title, content, previous_content,
	last_updated_by, pending_review, sort_order, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (*Section, error) {
	var (
		sec                  Section
		prev                 sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&sec.ID, &sec.DocumentID, &sec.Type, &sec.Title, &sec.Content, &prev,
		&sec.LastUpdatedBy, &sec.PendingReview, &sec.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan section: %w", err)
	}
	if prev.Valid {
		p := prev.String
		sec.PreviousContent = &p
	}
	sec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	sec.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &sec, nil
}
