package conversation

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
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

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestAddMessageAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"one", "two", "three"} {
		if _, err := s.AddMessage(ctx, Message{
			ClientID:  "c1",
			Speaker:   SpeakerClient,
			Content:   text,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}
	if _, err := s.AddMessage(ctx, Message{ClientID: "other", Speaker: SpeakerClient, Content: "x"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, "c1", "", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if diff := cmp.Diff([]string{"three", "two"}, contents(got)); diff != "" {
		t.Errorf("Recent mismatch (-want +got):\n%s", diff)
	}

	all, _ := s.Recent(ctx, "c1", "", 0)
	if len(all) != 3 {
		t.Errorf("unlimited Recent returned %d", len(all))
	}
}

func TestAddMessageRejectsUnknownSpeaker(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddMessage(context.Background(), Message{ClientID: "c1", Speaker: "robot"}); err == nil {
		t.Error("expected error for invalid speaker")
	}
}

func TestSinceIsStrictAndChronological(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"a", "b", "c", "d"} {
		s.AddMessage(ctx, Message{
			ClientID:  "c1",
			Speaker:   SpeakerCoach,
			Content:   text,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	got, err := s.Since(ctx, "c1", base.Add(time.Second))
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "d"}, contents(got)); diff != "" {
		t.Errorf("Since mismatch (-want +got):\n%s", diff)
	}

	all, _ := s.Since(ctx, "c1", time.Time{})
	if len(all) != 4 {
		t.Errorf("Since(zero) returned %d, want 4", len(all))
	}
}

func TestThreads(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "c1", "")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	s.AddMessage(ctx, Message{ClientID: "c1", ThreadID: th.ID, Speaker: SpeakerClient, Content: "in thread"})
	s.AddMessage(ctx, Message{ClientID: "c1", Speaker: SpeakerClient, Content: "no thread"})

	got, _ := s.Recent(ctx, "c1", th.ID, 10)
	if diff := cmp.Diff([]string{"in thread"}, contents(got)); diff != "" {
		t.Errorf("thread filter mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetThreadTitle(ctx, th.ID, "Career pivot"); err != nil {
		t.Fatalf("SetThreadTitle: %v", err)
	}
	reloaded, _ := s.GetThread(ctx, th.ID)
	if reloaded.Title != "Career pivot" {
		t.Errorf("Title = %q", reloaded.Title)
	}

	if _, err := s.GetThread(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetThread(missing) err = %v", err)
	}
	threads, _ := s.Threads(ctx, "c1")
	if len(threads) != 1 {
		t.Errorf("Threads returned %d", len(threads))
	}
}

func TestLatestActivity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	s.AddMessage(ctx, Message{ClientID: "a", Speaker: SpeakerClient, Content: "x", CreatedAt: t1})
	s.AddMessage(ctx, Message{ClientID: "a", Speaker: SpeakerAssistant, Content: "y", CreatedAt: t2})
	s.AddMessage(ctx, Message{ClientID: "b", Speaker: SpeakerClient, Content: "z", CreatedAt: t1})

	got, err := s.LatestActivity(ctx)
	if err != nil {
		t.Fatalf("LatestActivity: %v", err)
	}
	want := []Activity{{ClientID: "a", LastMessage: t2}, {ClientID: "b", LastMessage: t1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LatestActivity mismatch (-want +got):\n%s", diff)
	}
}

func TestMentionsCoach(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"@coach what do you think?", true},
		{"Hey @Coach, quick one", true},
		{"my coach said hi", false},
		{"email me at x@coach.io", false},
		{"@coaching is fun", false},
	}
	for _, tt := range tests {
		if got := MentionsCoach(tt.in); got != tt.want {
			t.Errorf("MentionsCoach(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
