// Package synthesis distills conversation into proposed rewrites of a
// client's living-document sections. Proposals go through the document
// reconciler, so every AI change stays pending until a human accepts or
// reverts it.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/prompts"
	"github.com/nugget/thinkpartner/internal/tokens"
)

// ErrModelCall wraps failures of the model call itself. Malformed model
// output is not an error; it yields no proposals.
var ErrModelCall = errors.New("synthesis model call failed")

// CheckpointNamespace is the opstate namespace holding per-client
// session checkpoints.
const CheckpointNamespace = "synthesis_checkpoint"

// maxTranscriptTokens bounds the transcript sent in one model call. A
// longer session is synthesized in chronological chunks.
const maxTranscriptTokens = 20000

// WordLimits are the per-type word ceilings given to the model.
var WordLimits = map[document.SectionType]int{
	document.TypeOverview:  150,
	document.TypeHighlight: 120,
	document.TypeFocus:     120,
	document.TypeContext:   200,
	document.TypeCustom:    150,
}

// Sections reads a client's document sections.
type Sections interface {
	Sections(ctx context.Context, clientID string) ([]document.Section, error)
}

// Proposer records an AI proposal on a section.
type Proposer interface {
	Propose(ctx context.Context, sectionID, content string) (*document.Section, error)
}

// Messages reads messages newer than a point in time, oldest first.
type Messages interface {
	Since(ctx context.Context, clientID string, t time.Time) ([]conversation.Message, error)
}

// Checkpoints stores the time of the last message a session synthesis
// considered.
type Checkpoints interface {
	Time(ctx context.Context, namespace, key string) (time.Time, bool, error)
	SetTime(ctx context.Context, namespace, key string, t time.Time) error
	Times(ctx context.Context, namespace string) (map[string]time.Time, error)
	Delete(ctx context.Context, namespace, key string) error
}

// Proposal is one validated section rewrite.
type Proposal struct {
	SectionID  string `json:"sectionId"`
	NewContent string `json:"newContent"`
}

// Result reports what a synthesis run did.
type Result struct {
	// Considered is the number of messages sent to the model.
	Considered int
	// Proposals are the validated proposals parsed from the model output.
	Proposals []Proposal
	// Applied counts proposals the reconciler accepted as pending.
	Applied int
}

// Deps bundles the collaborators a Synthesizer needs.
type Deps struct {
	LLM         llm.Client
	Model       string
	Sections    Sections
	Proposer    Proposer
	Messages    Messages
	Checkpoints Checkpoints
}

// Synthesizer runs incremental and session-level synthesis.
type Synthesizer struct {
	deps   Deps
	logger *slog.Logger
}

// New creates a Synthesizer.
func New(deps Deps, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{deps: deps, logger: logger.With("component", "synthesis")}
}

// Incremental considers a single exchange and proposes updates only for
// clearly new information.
func (s *Synthesizer) Incremental(ctx context.Context, clientID string, ex conversation.Exchange) (*Result, error) {
	sections, err := s.deps.Sections.Sections(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	prompt := prompts.IncrementalSynthesisPrompt(
		renderSections(sections),
		renderTranscript([]conversation.Message{ex.Human, ex.Assistant}),
	)
	res := &Result{Considered: 2}
	if err := s.run(ctx, "incremental", clientID, prompt, sections, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Session resynthesizes from every message since the client's
// checkpoint. Transcripts over maxTranscriptTokens are sent in
// chronological chunks, each seeing the sections as left by the chunk
// before it. The checkpoint advances to the newest message of each chunk
// after that chunk succeeds, even when nothing changed, so a failure
// part way through resumes from the first unconsidered message.
func (s *Synthesizer) Session(ctx context.Context, clientID string) (*Result, error) {
	since, _, err := s.deps.Checkpoints.Time(ctx, CheckpointNamespace, clientID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	msgs, err := s.deps.Messages.Since(ctx, clientID, since)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		s.logger.Debug("no new messages since checkpoint", "client", clientID, "since", since)
		return &Result{}, nil
	}

	chunks := chunkTranscript(msgs, maxTranscriptTokens)
	if len(chunks) > 1 {
		s.logger.Info("session transcript split", "client", clientID, "messages", len(msgs), "chunks", len(chunks))
	}

	total := &Result{}
	for _, chunk := range chunks {
		sections, err := s.deps.Sections.Sections(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("load sections: %w", err)
		}

		prompt := prompts.SessionSynthesisPrompt(renderSections(sections), renderTranscript(chunk))
		res := &Result{Considered: len(chunk)}
		if err := s.run(ctx, "session", clientID, prompt, sections, res); err != nil {
			return nil, err
		}
		total.Considered += res.Considered
		total.Proposals = append(total.Proposals, res.Proposals...)
		total.Applied += res.Applied

		newest := chunk[len(chunk)-1].CreatedAt
		if err := s.deps.Checkpoints.SetTime(ctx, CheckpointNamespace, clientID, newest); err != nil {
			return total, fmt.Errorf("advance checkpoint: %w", err)
		}
	}
	return total, nil
}

// Checkpoint reports the client's session checkpoint.
func (s *Synthesizer) Checkpoint(ctx context.Context, clientID string) (time.Time, bool, error) {
	return s.deps.Checkpoints.Time(ctx, CheckpointNamespace, clientID)
}

// Checkpoints returns every client's session checkpoint.
func (s *Synthesizer) Checkpoints(ctx context.Context) (map[string]time.Time, error) {
	return s.deps.Checkpoints.Times(ctx, CheckpointNamespace)
}

// ResetCheckpoint forgets the client's checkpoint, so the next Session
// reads the whole message history again.
func (s *Synthesizer) ResetCheckpoint(ctx context.Context, clientID string) error {
	if err := s.deps.Checkpoints.Delete(ctx, CheckpointNamespace, clientID); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	s.logger.Info("synthesis checkpoint reset", "client", clientID)
	return nil
}

func (s *Synthesizer) run(ctx context.Context, mode, clientID, prompt string, sections []document.Section, res *Result) error {
	start := time.Now()
	resp, err := s.deps.LLM.Chat(ctx, s.deps.Model, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	proposals, ok := parseProposals(resp.Message.Content, sections)
	if !ok {
		s.logger.Debug("synthesis output not parseable, treating as no proposals",
			"mode", mode,
			"client", clientID,
			"output_len", len(resp.Message.Content),
		)
	}
	res.Proposals = proposals

	for _, p := range proposals {
		if _, err := s.deps.Proposer.Propose(ctx, p.SectionID, p.NewContent); err != nil {
			s.logger.Warn("failed to record proposal",
				"mode", mode, "client", clientID, "section", p.SectionID, "error", err)
			continue
		}
		res.Applied++
	}

	s.logger.Info("synthesis complete",
		"mode", mode,
		"client", clientID,
		"messages", res.Considered,
		"proposals", len(proposals),
		"applied", res.Applied,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func renderSections(sections []document.Section) string {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		limit, ok := WordLimits[sec.Type]
		if !ok {
			limit = WordLimits[document.TypeCustom]
		}
		fmt.Fprintf(&b, "[sectionId: %s] %s (%s, at most %d words)\n", sec.ID, sec.Title, sec.Type, limit)
		if c := strings.TrimSpace(sec.Content); c != "" {
			b.WriteString(c)
		} else {
			b.WriteString("(empty)")
		}
	}
	return b.String()
}

func speakerLabel(sp conversation.Speaker) string {
	switch sp {
	case conversation.SpeakerCoach:
		return "Coach"
	case conversation.SpeakerAssistant:
		return "Assistant"
	}
	return "Client"
}

func renderTranscript(msgs []conversation.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", speakerLabel(m.Speaker), strings.TrimSpace(m.Content))
	}
	return b.String()
}

// chunkTranscript splits msgs, oldest first, into consecutive runs whose
// combined estimate fits limit. A message larger than limit on its own is
// truncated into a run by itself.
func chunkTranscript(msgs []conversation.Message, limit int) [][]conversation.Message {
	var (
		chunks [][]conversation.Message
		cur    []conversation.Message
		total  int
	)
	for _, m := range msgs {
		est := tokens.Estimate(m.Content)
		if est > limit {
			m.Content = tokens.Truncate(m.Content, limit)
			est = limit
		}
		if len(cur) > 0 && total+est > limit {
			chunks = append(chunks, cur)
			cur, total = nil, 0
		}
		cur = append(cur, m)
		total += est
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}
