package document

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

func strPtr(s string) *string { return &s }

// seedSection returns the first default section with content set by a coach.
func seedSection(t *testing.T, s *Store, content string) *Section {
	t.Helper()
	ctx := context.Background()
	secs, err := s.Sections(ctx, "client-1")
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	sec := secs[0]
	sec.Content = content
	if err := s.UpdateSection(ctx, &sec); err != nil {
		t.Fatalf("UpdateSection: %v", err)
	}
	return &sec
}

func TestEnsureDocument_SeedsDefaults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	secs, err := s.Sections(ctx, "client-1")
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(secs) != 4 {
		t.Fatalf("got %d sections, want 4", len(secs))
	}
	wantTypes := []SectionType{TypeOverview, TypeHighlight, TypeFocus, TypeContext}
	for i, sec := range secs {
		if sec.Type != wantTypes[i] {
			t.Errorf("section %d type = %s, want %s", i, sec.Type, wantTypes[i])
		}
		if sec.SortOrder != i {
			t.Errorf("section %d sort order = %d", i, sec.SortOrder)
		}
		if sec.PendingReview || sec.PreviousContent != nil {
			t.Errorf("new section %q should be stable", sec.Title)
		}
	}

	// Second call must not duplicate.
	doc1, _ := s.EnsureDocument(ctx, "client-1")
	doc2, _ := s.EnsureDocument(ctx, "client-1")
	if doc1.ID != doc2.ID {
		t.Errorf("EnsureDocument created a second document")
	}
	secs, _ = s.Sections(ctx, "client-1")
	if len(secs) != 4 {
		t.Errorf("sections duplicated: %d", len(secs))
	}
}

func TestCreateAndDeleteSection(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sec, err := s.CreateSection(ctx, "client-1", TypeCustom, "Values")
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	if sec.SortOrder != 4 {
		t.Errorf("custom section sort order = %d, want 4", sec.SortOrder)
	}

	if _, err := s.CreateSection(ctx, "client-1", SectionType("bogus"), "x"); err == nil {
		t.Error("expected error for invalid type")
	}

	if err := s.DeleteSection(ctx, sec.ID); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}
	if _, err := s.GetSection(ctx, sec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSection after delete: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	secs, _ := s.Sections(ctx, "client-1")
	if err := s.DeleteDocument(ctx, "client-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetSection(ctx, secs[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("section survived document deletion: %v", err)
	}
	if _, err := s.GetDocument(ctx, "client-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("document survived deletion: %v", err)
	}
}

func TestProposeThenRevert(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	ctx := context.Background()
	sec := seedSection(t, s, "Client enjoys running")

	got, err := r.Propose(ctx, sec.ID, "Client enjoys running and just started therapy")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if !got.PendingReview {
		t.Error("expected PendingReview after proposal")
	}
	if got.PreviousContent == nil || *got.PreviousContent != "Client enjoys running" {
		t.Errorf("PreviousContent = %v, want original", got.PreviousContent)
	}
	if got.LastUpdatedBy != AuthorAI {
		t.Errorf("LastUpdatedBy = %s, want ai", got.LastUpdatedBy)
	}

	got, err = r.Revert(ctx, sec.ID)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if got.Content != "Client enjoys running" {
		t.Errorf("Content = %q after revert", got.Content)
	}
	if got.PendingReview || got.PreviousContent != nil {
		t.Error("expected Stable after revert")
	}
	if got.LastUpdatedBy != AuthorCoach {
		t.Errorf("LastUpdatedBy = %s, want coach", got.LastUpdatedBy)
	}

	// Persisted state matches.
	stored, _ := s.GetSection(ctx, sec.ID)
	if stored.Content != "Client enjoys running" || stored.PendingReview {
		t.Errorf("stored state not reverted: %+v", stored)
	}
}

func TestProposeThenAccept(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	ctx := context.Background()
	sec := seedSection(t, s, "old")

	if _, err := r.Propose(ctx, sec.ID, "new"); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	got, err := r.Accept(ctx, sec.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Content != "new" || got.PendingReview || got.PreviousContent != nil {
		t.Errorf("unexpected state after accept: %+v", got)
	}
	if got.LastUpdatedBy != AuthorAI {
		t.Errorf("accept should leave LastUpdatedBy = ai, got %s", got.LastUpdatedBy)
	}

	// Idempotent.
	again, err := r.Accept(ctx, sec.ID)
	if err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	if again.Content != "new" {
		t.Errorf("second accept changed content: %q", again.Content)
	}
}

func TestProposeTwiceRevertsToFirstOriginal(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	ctx := context.Background()
	sec := seedSection(t, s, "approved")

	if _, err := r.Propose(ctx, sec.ID, "draft one"); err != nil {
		t.Fatal(err)
	}
	got, err := r.Propose(ctx, sec.ID, "draft two")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "draft two" {
		t.Errorf("Content = %q, want draft two", got.Content)
	}
	if *got.PreviousContent != "approved" {
		t.Errorf("PreviousContent = %q, want approved", *got.PreviousContent)
	}

	got, err = r.Revert(ctx, sec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "approved" {
		t.Errorf("revert landed on %q, want approved", got.Content)
	}
}

func TestRevertWithoutPending(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	sec := seedSection(t, s, "stable")

	if _, err := r.Revert(context.Background(), sec.ID); !errors.Is(err, ErrNothingToRevert) {
		t.Errorf("Revert on stable section: err = %v, want ErrNothingToRevert", err)
	}
}

func TestProposeOnBlankSectionRevertsToBlank(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	ctx := context.Background()
	sec := seedSection(t, s, "")

	got, err := r.Propose(ctx, sec.ID, "first content")
	if err != nil {
		t.Fatal(err)
	}
	if got.PreviousContent == nil {
		t.Fatal("pending section must carry previous content, even if blank")
	}

	stored, _ := s.GetSection(ctx, sec.ID)
	if stored.PreviousContent == nil || *stored.PreviousContent != "" {
		t.Errorf("stored previous content = %v, want empty string", stored.PreviousContent)
	}

	got, err = r.Revert(ctx, sec.ID)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if got.Content != "" {
		t.Errorf("Content = %q, want blank", got.Content)
	}
}

func TestHumanEditDiscardsPending(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	ctx := context.Background()
	sec := seedSection(t, s, "original")

	if _, err := r.Propose(ctx, sec.ID, "ai rewrite"); err != nil {
		t.Fatal(err)
	}
	got, err := r.HumanEdit(ctx, sec.ID, Edit{Content: strPtr("coach wording")}, AuthorClient)
	if err != nil {
		t.Fatalf("HumanEdit: %v", err)
	}
	if got.Content != "coach wording" || got.PendingReview || got.PreviousContent != nil {
		t.Errorf("unexpected state: %+v", got)
	}
	if got.LastUpdatedBy != AuthorClient {
		t.Errorf("LastUpdatedBy = %s, want client", got.LastUpdatedBy)
	}
	if _, err := r.Revert(ctx, sec.ID); !errors.Is(err, ErrNothingToRevert) {
		t.Errorf("revert after human edit: %v", err)
	}

	if _, err := r.HumanEdit(ctx, sec.ID, Edit{Title: strPtr("x")}, AuthorAI); err == nil {
		t.Error("expected error for AI actor on human edit")
	}
}

func TestReconcilerUnknownSection(t *testing.T) {
	s := testStore(t)
	r := NewReconciler(s, slog.Default())
	ctx := context.Background()

	if _, err := r.Propose(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Propose: err = %v, want ErrNotFound", err)
	}
	if _, err := r.Accept(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Accept: err = %v, want ErrNotFound", err)
	}
}
