package exercise

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, slog.Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func wheel(t *testing.T, s *Store) *Exercise {
	t.Helper()
	ex, err := s.Create(context.Background(), Exercise{
		Title:        "Wheel of Life",
		Instructions: "Guide one step at a time.",
		Steps: []Step{
			{Title: "Intro", Instructions: "Explain."},
			{Title: "Rate", Instructions: "Rate areas.", Guidance: "Be patient."},
			{Title: "Reflect", Instructions: "Ask what stands out."},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ex
}

func TestCreateAndGet(t *testing.T) {
	s := testStore(t)
	ex := wheel(t, s)

	got, err := s.Get(context.Background(), ex.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Steps) != 3 || got.Steps[1].Guidance != "Be patient." {
		t.Errorf("steps = %+v", got.Steps)
	}
	for i, st := range got.Steps {
		if st.Order != i {
			t.Errorf("step %d order = %d", i, st.Order)
		}
	}

	if _, err := s.Create(context.Background(), Exercise{Title: "empty"}); err == nil {
		t.Error("expected error for exercise without steps")
	}
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v", err)
	}
}

func TestProgressLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ex := wheel(t, s)

	sess, err := s.Active(ctx, "c1", "t1")
	if err != nil || sess != nil {
		t.Fatalf("Active before start = %v, %v", sess, err)
	}

	if err := s.Start(ctx, "c1", "t1", ex.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess, _ = s.Active(ctx, "c1", "t1")
	if sess.CurrentStep().Title != "Intro" || sess.NextStep().Title != "Rate" {
		t.Errorf("unexpected session position: %+v", sess)
	}

	// Other threads are unaffected.
	if other, _ := s.Active(ctx, "c1", "t2"); other != nil {
		t.Error("exercise leaked into another thread")
	}

	for i := 0; i < 2; i++ {
		active, err := s.Advance(ctx, "c1", "t1")
		if err != nil || !active {
			t.Fatalf("Advance %d = %v, %v", i, active, err)
		}
	}
	sess, _ = s.Active(ctx, "c1", "t1")
	if sess.CurrentStep().Title != "Reflect" || sess.NextStep() != nil {
		t.Errorf("expected last step, got %+v", sess.CurrentStep())
	}

	active, err := s.Advance(ctx, "c1", "t1")
	if err != nil || active {
		t.Fatalf("Advance past end = %v, %v", active, err)
	}
	if sess, _ := s.Active(ctx, "c1", "t1"); sess != nil {
		t.Error("exercise should be finished")
	}
}

func TestSessionStepBounds(t *testing.T) {
	var nilSess *Session
	if nilSess.CurrentStep() != nil || nilSess.NextStep() != nil {
		t.Error("nil session should have no steps")
	}
	s := &Session{Exercise: Exercise{Steps: []Step{{Title: "a"}}}, Current: 5}
	if s.CurrentStep() != nil {
		t.Error("out-of-range current should be nil")
	}
}
