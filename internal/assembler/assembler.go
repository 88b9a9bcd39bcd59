// Package assembler builds the bounded context payload sent to the model
// for each reply: a system prompt made of budgeted blocks in a fixed
// order, followed by as much recent conversation as fits the buffer.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nugget/thinkpartner/internal/budget"
	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/exercise"
	"github.com/nugget/thinkpartner/internal/gaps"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/profile"
	"github.com/nugget/thinkpartner/internal/prompts"
	"github.com/nugget/thinkpartner/internal/tokens"
)

// Separator joins the system prompt blocks.
const Separator = "\n\n---\n\n"

// DefaultHistoryLimit bounds how many stored messages are considered for
// the conversation window.
const DefaultHistoryLimit = 200

// Profiles supplies per-client prompt configuration.
type Profiles interface {
	Prompts(ctx context.Context, clientID string) (profile.Prompts, error)
	ActiveMethodologies(ctx context.Context, clientID string) ([]profile.Methodology, error)
	References(ctx context.Context, clientID string) ([]profile.Reference, error)
	Attachments(ctx context.Context, clientID string) ([]profile.Attachment, error)
}

// Sections supplies the client's living document.
type Sections interface {
	Sections(ctx context.Context, clientID string) ([]document.Section, error)
}

// History supplies stored messages, newest first.
type History interface {
	Recent(ctx context.Context, clientID, threadID string, limit int) ([]conversation.Message, error)
}

// Exercises reports the exercise active on a thread, or nil.
type Exercises interface {
	Active(ctx context.Context, clientID, threadID string) (*exercise.Session, error)
}

// Sources groups the stores the assembler reads. Exercises may be nil.
type Sources struct {
	Profiles  Profiles
	Sections  Sections
	History   History
	Exercises Exercises
}

// Options tune assembly.
type Options struct {
	Budget       budget.Table
	HistoryLimit int
	// ThreeWay tags client turns with a [CLIENT]: prefix so the model can
	// tell them apart from the coach.
	ThreeWay bool
}

// Request identifies the reply being prepared. Current is the incoming
// message; when it has an ID it is assumed to be stored already.
type Request struct {
	ClientID string
	ThreadID string
	Current  conversation.Message
}

// Block is one named piece of the system prompt.
type Block struct {
	Name   string
	Text   string
	Tokens int
}

// Payload is the assembled model input.
type Payload struct {
	System   string
	Blocks   []Block
	Window   []conversation.Message
	Messages []llm.Message

	// TotalTokens estimates the system prompt plus every message. It is
	// informational; each slot bounds itself.
	TotalTokens int
}

// LLMMessages returns the payload as a single message list with the
// system prompt first.
func (p *Payload) LLMMessages() []llm.Message {
	out := make([]llm.Message, 0, len(p.Messages)+1)
	if p.System != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: p.System})
	}
	return append(out, p.Messages...)
}

// Assembler builds payloads from its sources.
type Assembler struct {
	src    Sources
	opts   Options
	logger *slog.Logger
}

// New creates an Assembler. A zero Budget uses budget.Default and a
// non-positive HistoryLimit uses DefaultHistoryLimit.
func New(src Sources, opts Options, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Budget.Sum() == 0 {
		opts.Budget = budget.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Assembler{src: src, opts: opts, logger: logger.With("component", "assembler")}
}

// snapshot is everything read from the sources for one assembly.
type snapshot struct {
	prompts       profile.Prompts
	methodologies []profile.Methodology
	references    []profile.Reference
	attachments   []profile.Attachment
	sections      []document.Section
	history       []conversation.Message
	session       *exercise.Session
}

func (a *Assembler) load(ctx context.Context, req Request) (*snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.prompts, err = a.src.Profiles.Prompts(gctx, req.ClientID)
		return wrap("prompts", err)
	})
	g.Go(func() (err error) {
		snap.methodologies, err = a.src.Profiles.ActiveMethodologies(gctx, req.ClientID)
		return wrap("methodologies", err)
	})
	g.Go(func() (err error) {
		snap.references, err = a.src.Profiles.References(gctx, req.ClientID)
		return wrap("references", err)
	})
	g.Go(func() (err error) {
		snap.attachments, err = a.src.Profiles.Attachments(gctx, req.ClientID)
		return wrap("attachments", err)
	})
	g.Go(func() (err error) {
		snap.sections, err = a.src.Sections.Sections(gctx, req.ClientID)
		return wrap("sections", err)
	})
	g.Go(func() (err error) {
		snap.history, err = a.src.History.Recent(gctx, req.ClientID, req.ThreadID, a.opts.HistoryLimit)
		return wrap("history", err)
	})
	if a.src.Exercises != nil && req.ThreadID != "" {
		g.Go(func() (err error) {
			snap.session, err = a.src.Exercises.Active(gctx, req.ClientID, req.ThreadID)
			return wrap("exercise", err)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// Assemble reads every source and builds the payload for req.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Payload, error) {
	snap, err := a.load(ctx, req)
	if err != nil {
		return nil, err
	}

	b := a.opts.Budget
	candidates := []struct {
		name string
		text string
	}{
		{"role", roleBlock(snap.prompts.Role, b.Ceiling(budget.SlotRole))},
		{"methodology", methodologyBlock(snap.methodologies, b.Ceiling(budget.SlotMethodology))},
		{"reference", referenceBlock(snap.references, snap.attachments,
			b.Ceiling(budget.SlotReference), b.Ceiling(budget.SlotAttachments))},
		{"memory", memoryBlock(snap.sections, b.Ceiling(budget.SlotMemory))},
		{"instructions", instructionsBlock(snap.prompts.Task, snap.session, b.Ceiling(budget.SlotInstructions))},
		{"exercise", exerciseBlock(snap.session)},
		{"conversation_model", prompts.ThreePartyExplanation(a.opts.ThreeWay)},
		{"gaps", gaps.Detect(snap.sections)},
	}

	p := &Payload{}
	var parts []string
	for _, c := range candidates {
		if strings.TrimSpace(c.text) == "" {
			continue
		}
		p.Blocks = append(p.Blocks, Block{Name: c.name, Text: c.text, Tokens: tokens.Estimate(c.text)})
		parts = append(parts, c.text)
	}
	p.System = strings.Join(parts, Separator)

	p.Window = SelectWindow(snap.history, req.Current, b.Ceiling(budget.SlotConversation))
	p.Messages = Relabel(p.Window, a.opts.ThreeWay)

	p.TotalTokens = tokens.Estimate(p.System)
	for _, m := range p.Messages {
		p.TotalTokens += tokens.Estimate(m.Content)
	}

	a.logger.Debug("context assembled",
		"client", req.ClientID,
		"thread", req.ThreadID,
		"blocks", len(p.Blocks),
		"window", len(p.Window),
		"candidates", len(snap.history),
		"total_tokens", p.TotalTokens,
		"exercise", snap.session != nil,
	)
	return p, nil
}
