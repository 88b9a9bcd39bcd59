package exercise

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an exercise does not exist.
var ErrNotFound = errors.New("not found")

// Store persists exercises and per-thread progress in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates an exercise store on an existing database connection.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "exercise_store")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS exercise_steps (
			id TEXT PRIMARY KEY,
			exercise_id TEXT NOT NULL,
			step_order INTEGER NOT NULL,
			title TEXT NOT NULL,
			instructions TEXT NOT NULL,
			guidance TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_exercise_steps ON exercise_steps(exercise_id, step_order);

		CREATE TABLE IF NOT EXISTS exercise_progress (
			client_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			exercise_id TEXT NOT NULL,
			current_step INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			PRIMARY KEY (client_id, thread_id)
		);
	`)
	return err
}

// Create stores an exercise and its steps. Step order follows the slice
// order; ids are assigned.
func (s *Store) Create(ctx context.Context, ex Exercise) (*Exercise, error) {
	if len(ex.Steps) == 0 {
		return nil, fmt.Errorf("exercise %q has no steps", ex.Title)
	}
	id, _ := uuid.NewV7()
	ex.ID = id.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO exercises (id, title, description, instructions) VALUES (?, ?, ?, ?)
	`, ex.ID, ex.Title, ex.Description, ex.Instructions); err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}

	steps := make([]Step, len(ex.Steps))
	for i, st := range ex.Steps {
		sid, _ := uuid.NewV7()
		st.ID = sid.String()
		st.Order = i
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exercise_steps (id, exercise_id, step_order, title, instructions, guidance)
			VALUES (?, ?, ?, ?, ?, ?)
		`, st.ID, ex.ID, st.Order, st.Title, st.Instructions, st.Guidance); err != nil {
			return nil, fmt.Errorf("insert step %d: %w", i, err)
		}
		steps[i] = st
	}
	ex.Steps = steps

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &ex, nil
}

// Get returns an exercise with its ordered steps.
func (s *Store) Get(ctx context.Context, id string) (*Exercise, error) {
	var ex Exercise
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, instructions FROM exercises WHERE id = ?
	`, id).Scan(&ex.ID, &ex.Title, &ex.Description, &ex.Instructions)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query exercise: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_order, title, instructions, guidance FROM exercise_steps
		WHERE exercise_id = ? ORDER BY step_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.ID, &st.Order, &st.Title, &st.Instructions, &st.Guidance); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		ex.Steps = append(ex.Steps, st)
	}
	return &ex, rows.Err()
}

// Start begins (or restarts) an exercise on a client's thread at step 0.
func (s *Store) Start(ctx context.Context, clientID, threadID, exerciseID string) error {
	if _, err := s.Get(ctx, exerciseID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exercise_progress (client_id, thread_id, exercise_id, current_step, started_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (client_id, thread_id) DO UPDATE
		SET exercise_id = excluded.exercise_id, current_step = 0, started_at = excluded.started_at
	`, clientID, threadID, exerciseID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("start exercise: %w", err)
	}
	s.logger.Info("exercise started", "client", clientID, "thread", threadID, "exercise", exerciseID)
	return nil
}

// Advance moves to the next step. Advancing past the last step finishes
// the exercise. It reports whether an exercise is still active.
func (s *Store) Advance(ctx context.Context, clientID, threadID string) (bool, error) {
	sess, err := s.Active(ctx, clientID, threadID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if sess.NextStep() == nil {
		return false, s.Finish(ctx, clientID, threadID)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE exercise_progress SET current_step = current_step + 1
		WHERE client_id = ? AND thread_id = ?
	`, clientID, threadID)
	if err != nil {
		return false, fmt.Errorf("advance exercise: %w", err)
	}
	return true, nil
}

// Finish ends any exercise active on the thread.
func (s *Store) Finish(ctx context.Context, clientID, threadID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM exercise_progress WHERE client_id = ? AND thread_id = ?
	`, clientID, threadID)
	if err != nil {
		return fmt.Errorf("finish exercise: %w", err)
	}
	return nil
}

// Active returns the exercise in progress on the thread, or nil when
// there is none.
func (s *Store) Active(ctx context.Context, clientID, threadID string) (*Session, error) {
	var (
		exerciseID string
		current    int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT exercise_id, current_step FROM exercise_progress
		WHERE client_id = ? AND thread_id = ?
	`, clientID, threadID).Scan(&exerciseID, &current)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}

	ex, err := s.Get(ctx, exerciseID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("progress references missing exercise", "exercise", exerciseID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Session{Exercise: *ex, Current: current}, nil
}
