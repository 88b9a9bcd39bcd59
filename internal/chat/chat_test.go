package chat

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/nugget/thinkpartner/internal/assembler"
	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/profile"
)

type mockLLM struct {
	reply string
	err   error
	got   []llm.Message
}

func (m *mockLLM) Chat(_ context.Context, model string, msgs []llm.Message) (*llm.ChatResponse, error) {
	m.got = msgs
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Model: model, Message: llm.Message{Role: llm.RoleAssistant, Content: m.reply}}, nil
}

func (m *mockLLM) Ping(context.Context) error { return nil }

type recorder struct {
	mu          sync.Mutex
	incremental int
	sessions    int
	titles      []string
}

func (r *recorder) Incremental(string, conversation.Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incremental++
}

func (r *recorder) Session(string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
	return true
}

func (r *recorder) Title(_, threadID string, _ conversation.Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, threadID)
}

type harness struct {
	convo *conversation.Store
	llm   *mockLLM
	bg    *recorder
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	convo, err := conversation.NewStore(db, nil)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := document.NewStore(db, nil)
	if err != nil {
		t.Fatal(err)
	}
	profiles, err := profile.NewStore(db, nil)
	if err != nil {
		t.Fatal(err)
	}

	asm := assembler.New(assembler.Sources{Profiles: profiles, Sections: docs, History: convo},
		assembler.Options{ThreeWay: true}, nil)
	h := &harness{convo: convo, llm: &mockLLM{reply: "Tell me more."}, bg: &recorder{}}
	h.svc = NewService(convo, asm, h.llm, "test-model", h.bg, nil)
	return h
}

func TestSend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	thread, _ := h.convo.CreateThread(ctx, "c1", "")

	reply, err := h.svc.Send(ctx, SendRequest{
		ClientID: "c1",
		ThreadID: thread.ID,
		Speaker:  conversation.SpeakerClient,
		Content:  "  I keep procrastinating. @coach thoughts?  ",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !reply.Human.MentionsCoach {
		t.Error("mention flag not set")
	}
	if reply.Assistant.Content != "Tell me more." || reply.Assistant.Speaker != conversation.SpeakerAssistant {
		t.Errorf("assistant = %+v", reply.Assistant)
	}
	if reply.Farewell {
		t.Error("unexpected farewell")
	}

	// The stored message appears exactly once, last, with its prefix.
	last := h.llm.got[len(h.llm.got)-1]
	if !strings.HasPrefix(last.Content, "[CLIENT]: ") || !strings.Contains(last.Content, "procrastinating") {
		t.Errorf("last model message = %q", last.Content)
	}
	count := 0
	for _, m := range h.llm.got {
		if strings.Contains(m.Content, "procrastinating") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("current message sent %d times", count)
	}

	stored, _ := h.convo.Recent(ctx, "c1", thread.ID, 0)
	if len(stored) != 2 {
		t.Errorf("stored messages = %d, want 2", len(stored))
	}
	if h.bg.incremental != 1 || len(h.bg.titles) != 1 {
		t.Errorf("background = %+v", h.bg)
	}
}

func TestSendFarewellTriggersSession(t *testing.T) {
	h := newHarness(t)
	reply, err := h.svc.Send(context.Background(), SendRequest{
		ClientID: "c1", Speaker: conversation.SpeakerClient, Content: "Thanks, talk soon!",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !reply.Farewell || h.bg.sessions != 1 {
		t.Errorf("farewell=%v sessions=%d", reply.Farewell, h.bg.sessions)
	}
	if len(h.bg.titles) != 0 {
		t.Error("no title without a thread")
	}
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.Send(ctx, SendRequest{ClientID: "c1", Speaker: conversation.SpeakerClient, Content: "  "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank content err = %v", err)
	}
	if _, err := h.svc.Send(ctx, SendRequest{ClientID: "c1", Speaker: conversation.SpeakerAssistant, Content: "hi"}); err == nil {
		t.Error("assistant speaker should be rejected")
	}

	other, _ := h.convo.CreateThread(ctx, "c2", "")
	if _, err := h.svc.Send(ctx, SendRequest{ClientID: "c1", ThreadID: other.ID, Speaker: conversation.SpeakerClient, Content: "hi"}); err == nil {
		t.Error("foreign thread should be rejected")
	}
}

func TestSendModelFailureKeepsHumanMessage(t *testing.T) {
	h := newHarness(t)
	h.llm.err = errors.New("timeout")

	_, err := h.svc.Send(context.Background(), SendRequest{
		ClientID: "c1", Speaker: conversation.SpeakerCoach, Content: "Checking in.",
	})
	if !errors.Is(err, ErrModelCall) {
		t.Fatalf("err = %v, want ErrModelCall", err)
	}
	stored, _ := h.convo.Recent(context.Background(), "c1", "", 0)
	if len(stored) != 1 || stored[0].Speaker != conversation.SpeakerCoach {
		t.Errorf("stored = %+v", stored)
	}
	if h.bg.incremental != 0 {
		t.Error("no background work after a failed turn")
	}
}

func TestEndSession(t *testing.T) {
	h := newHarness(t)
	if !h.svc.EndSession("c1") || h.bg.sessions != 1 {
		t.Error("EndSession should schedule session synthesis")
	}
	svc := NewService(nil, nil, nil, "", nil, nil)
	if svc.EndSession("c1") {
		t.Error("EndSession without background should report false")
	}
}

func TestSendRejectsOversizedMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{
		ClientID: "c1", Speaker: conversation.SpeakerClient, Content: strings.Repeat("x", 40000),
	})
	if !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("err = %v, want ErrMessageTooLong", err)
	}
	if h.llm.got != nil {
		t.Error("model should not be called")
	}
	if stored, _ := h.convo.Recent(ctx, "c1", "", 0); len(stored) != 0 {
		t.Errorf("oversized message was stored: %d", len(stored))
	}
}

func TestSendLongMessageIsLastTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := h.svc.Send(ctx, SendRequest{ClientID: "c1", Speaker: conversation.SpeakerClient, Content: strings.Repeat("a", 8000)}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	long := strings.Repeat("z", 34000)
	if _, err := h.svc.Send(ctx, SendRequest{ClientID: "c1", Speaker: conversation.SpeakerClient, Content: long}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	last := h.llm.got[len(h.llm.got)-1]
	if last.Role != llm.RoleUser || !strings.HasSuffix(last.Content, long) {
		t.Errorf("final model turn is not the current message: role=%s len=%d", last.Role, len(last.Content))
	}
}
