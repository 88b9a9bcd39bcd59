// Package chat handles one conversational turn end to end: persist the
// incoming message, assemble context, call the model, persist the reply,
// and hand the exchange to background synthesis.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/thinkpartner/internal/assembler"
	"github.com/nugget/thinkpartner/internal/budget"
	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/synthesis"
	"github.com/nugget/thinkpartner/internal/tokens"
)

var (
	// ErrEmptyMessage is returned for blank message content.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong is returned for a message that would not fit the
	// conversation window on its own.
	ErrMessageTooLong = errors.New("message is too long")
	// ErrModelCall wraps a failed call to the language model.
	ErrModelCall = errors.New("model call failed")
)

// Store is the conversation storage the service writes to.
type Store interface {
	AddMessage(ctx context.Context, msg conversation.Message) (*conversation.Message, error)
	GetThread(ctx context.Context, id string) (*conversation.Thread, error)
}

// Assembler builds the model payload.
type Assembler interface {
	Assemble(ctx context.Context, req assembler.Request) (*assembler.Payload, error)
}

// Background receives fire-and-forget work after each turn.
type Background interface {
	Incremental(clientID string, ex conversation.Exchange)
	Session(clientID string) bool
	Title(clientID, threadID string, ex conversation.Exchange)
}

// Service runs conversational turns.
type Service struct {
	store      Store
	assembler  Assembler
	llm        llm.Client
	model      string
	background Background
	maxTokens  int
	logger     *slog.Logger
}

// NewService creates a chat service. background may be nil.
func NewService(store Store, asm Assembler, client llm.Client, model string, background Background, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		assembler:  asm,
		llm:        client,
		model:      model,
		background: background,
		maxTokens:  budget.Default().Ceiling(budget.SlotConversation),
		logger:     logger.With("component", "chat"),
	}
}

// SendRequest is one incoming human message.
type SendRequest struct {
	ClientID string
	ThreadID string
	Speaker  conversation.Speaker
	Content  string
}

// Reply is the outcome of a turn.
type Reply struct {
	Human     conversation.Message
	Assistant conversation.Message
	Payload   *assembler.Payload
	// Farewell is set when the human message ended the session and a
	// session synthesis was scheduled.
	Farewell bool
}

// Send persists the message, generates the assistant's reply, and
// schedules background synthesis. A model failure is returned after the
// human message has been stored.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Reply, error) {
	if !req.Speaker.Human() {
		return nil, fmt.Errorf("speaker %q cannot send messages", req.Speaker)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if n := tokens.Estimate(content); n > s.maxTokens {
		return nil, fmt.Errorf("%w: about %d tokens, limit %d", ErrMessageTooLong, n, s.maxTokens)
	}

	var thread *conversation.Thread
	if req.ThreadID != "" {
		t, err := s.store.GetThread(ctx, req.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("load thread: %w", err)
		}
		if t.ClientID != req.ClientID {
			return nil, fmt.Errorf("thread %s belongs to another client", req.ThreadID)
		}
		thread = t
	}

	human, err := s.store.AddMessage(ctx, conversation.Message{
		ClientID:      req.ClientID,
		ThreadID:      req.ThreadID,
		Speaker:       req.Speaker,
		Content:       content,
		MentionsCoach: req.Speaker == conversation.SpeakerClient && conversation.MentionsCoach(content),
	})
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	payload, err := s.assembler.Assemble(ctx, assembler.Request{
		ClientID: req.ClientID,
		ThreadID: req.ThreadID,
		Current:  *human,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	resp, err := s.llm.Chat(ctx, s.model, payload.LLMMessages())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	assistant, err := s.store.AddMessage(ctx, conversation.Message{
		ClientID: req.ClientID,
		ThreadID: req.ThreadID,
		Speaker:  conversation.SpeakerAssistant,
		Content:  strings.TrimSpace(resp.Message.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}

	reply := &Reply{Human: *human, Assistant: *assistant, Payload: payload}
	ex := conversation.Exchange{Human: *human, Assistant: *assistant}

	s.logger.Info("turn complete",
		"client", req.ClientID,
		"thread", req.ThreadID,
		"speaker", req.Speaker,
		"model", resp.Model,
		"context_tokens", payload.TotalTokens,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)

	if s.background != nil {
		s.background.Incremental(req.ClientID, ex)
		if thread != nil && thread.Title == "" {
			s.background.Title(req.ClientID, req.ThreadID, ex)
		}
		if synthesis.IsFarewell(content) {
			reply.Farewell = s.background.Session(req.ClientID)
		}
	}
	return reply, nil
}

// EndSession schedules a session-level synthesis for the client. It
// reports false when one is already running or background work is off.
func (s *Service) EndSession(clientID string) bool {
	if s.background == nil {
		return false
	}
	s.logger.Info("session ended", "client", clientID)
	return s.background.Session(clientID)
}
