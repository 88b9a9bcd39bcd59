package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nugget/thinkpartner/internal/assembler"
	"github.com/nugget/thinkpartner/internal/chat"
	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/exercise"
	"github.com/nugget/thinkpartner/internal/gaps"
	"github.com/nugget/thinkpartner/internal/profile"
)

// command is a subcommand that needs the wired application.
type command struct {
	usage   string
	help    string
	minArgs int
	run     func(ctx context.Context, a *app, w io.Writer, opts options, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"serve":       {"serve", "Run the idle-session sweep until interrupted", 0, runServe},
		"client":      {"client add <name> [email] | client list", "Manage clients", 1, runClient},
		"thread":      {"thread <client> [title]", "Start a conversation thread", 1, runThread},
		"threads":     {"threads <client>", "List a client's threads", 1, runThreads},
		"chat":        {"[-as client|coach] chat <client> <thread> <text>", "Send a message and print the reply", 3, runChat},
		"end":         {"end <client>", "End the session and synthesize the document", 1, runEnd},
		"assemble":    {"assemble <client> <thread> [text]", "Print the assembled context", 2, runAssemble},
		"sections":    {"sections <client>", "Show the living document", 1, runSections},
		"accept":      {"accept <section>", "Keep a pending AI rewrite", 1, runAccept},
		"revert":      {"revert <section>", "Discard a pending AI rewrite", 1, runRevert},
		"edit":        {"[-title <title>] edit <section> [text]", "Edit a section as the coach", 1, runEdit},
		"synthesize":  {"[-reset] synthesize <client>", "Run session synthesis now (-reset rereads all history)", 1, runSynthesize},
		"checkpoints": {"checkpoints", "Show each client's synthesis checkpoint", 0, runCheckpoints},
		"gaps":        {"gaps <client>", "Show thin document sections", 1, runGaps},
		"attach":      {"attach <client> <file>", "Store a client file", 2, runAttach},
		"reference":   {"reference <client> <title> <file>", "Store reference material", 3, runReference},
		"methodology": {"methodology add <name> <file> | methodology assign <client> <id>", "Manage methodologies", 3, runMethodology},
		"prompt":      {"prompt role|task <client> <text>", "Set a client's role or task prompt", 3, runPrompt},
		"exercise":    {"exercise load <file.yaml> | start <client> <thread> <id> | next <client> <thread>", "Run guided exercises", 2, runExercise},
		"sweep":       {"sweep", "Run one idle-session sweep", 0, runSweep},
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runServe runs the periodic sweep and blocks until ctx is cancelled.
func runServe(ctx context.Context, a *app, w io.Writer, _ options, _ []string) error {
	if !a.cfg.Sweep.Enabled {
		return errors.New("sweep is disabled in config; nothing to serve")
	}
	if err := a.llm.Ping(ctx); err != nil {
		a.logger.Warn("LLM provider unreachable", "error", err)
	}

	a.sweeper.Start()
	a.logger.Info("thinkpartner running", "schedule", a.cfg.Sweep.Schedule, "session_idle", a.cfg.Synthesis.SessionIdle)

	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

func runClient(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return errors.New("usage: thinkpartner client add <name> [email]")
		}
		email := ""
		if len(args) > 2 {
			email = args[2]
		}
		c, err := a.profiles.CreateClient(ctx, args[1], email)
		if err != nil {
			return err
		}
		if _, err := a.documents.EnsureDocument(ctx, c.ID); err != nil {
			return err
		}
		if opts.outputFmt == "json" {
			return emitJSON(w, c)
		}
		fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
		return nil
	case "list":
		clients, err := a.profiles.Clients(ctx)
		if err != nil {
			return err
		}
		if opts.outputFmt == "json" {
			return emitJSON(w, clients)
		}
		for _, c := range clients {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Email)
		}
		return nil
	default:
		return fmt.Errorf("unknown client subcommand: %s", args[0])
	}
}

func runThread(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	if _, err := a.profiles.GetClient(ctx, args[0]); err != nil {
		return err
	}
	t, err := a.conversations.CreateThread(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, t)
	}
	fmt.Fprintln(w, t.ID)
	return nil
}

func runThreads(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	threads, err := a.conversations.Threads(ctx, args[0])
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, threads)
	}
	for _, t := range threads {
		title := t.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.UpdatedAt.Local().Format("2006-01-02 15:04"), title)
	}
	return nil
}

func parseSpeaker(s string) (conversation.Speaker, error) {
	switch strings.ToLower(s) {
	case "", "client":
		return conversation.SpeakerClient, nil
	case "coach":
		return conversation.SpeakerCoach, nil
	default:
		return "", fmt.Errorf("unknown speaker %q (expected client or coach)", s)
	}
}

func runChat(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	speaker, err := parseSpeaker(opts.speaker)
	if err != nil {
		return err
	}
	reply, err := a.chat.Send(ctx, chat.SendRequest{
		ClientID: args[0],
		ThreadID: args[1],
		Speaker:  speaker,
		Content:  strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, struct {
			Human     conversation.Message `json:"human"`
			Assistant conversation.Message `json:"assistant"`
			Tokens    int                  `json:"context_tokens"`
			Farewell  bool                 `json:"farewell"`
		}{reply.Human, reply.Assistant, reply.Payload.TotalTokens, reply.Farewell})
	}
	fmt.Fprintln(w, reply.Assistant.Content)
	return nil
}

func runEnd(ctx context.Context, a *app, w io.Writer, _ options, args []string) error {
	if !a.chat.EndSession(args[0]) {
		fmt.Fprintln(w, "session synthesis already running")
		return nil
	}
	a.worker.Wait()
	fmt.Fprintln(w, "session ended")
	return nil
}

func runAssemble(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	req := assembler.Request{ClientID: args[0], ThreadID: args[1]}
	if len(args) > 2 {
		speaker, err := parseSpeaker(opts.speaker)
		if err != nil {
			return err
		}
		content := strings.Join(args[2:], " ")
		req.Current = conversation.Message{
			ClientID:      args[0],
			ThreadID:      args[1],
			Speaker:       speaker,
			Content:       content,
			MentionsCoach: speaker == conversation.SpeakerClient && conversation.MentionsCoach(content),
		}
	}
	p, err := a.assembler.Assemble(ctx, req)
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, p)
	}

	for _, b := range p.Blocks {
		fmt.Fprintf(w, "[%s: %d tokens]\n", b.Name, b.Tokens)
	}
	fmt.Fprintf(w, "[window: %d messages]\n", len(p.Messages))
	fmt.Fprintf(w, "[total: %d tokens]\n\n", p.TotalTokens)
	fmt.Fprintln(w, p.System)
	for _, m := range p.Messages {
		fmt.Fprintf(w, "\n%s: %s\n", m.Role, m.Content)
	}
	return nil
}

func printSection(w io.Writer, s document.Section) {
	state := "stable"
	if s.PendingReview {
		state = "pending review"
	}
	fmt.Fprintf(w, "## %s (%s, %s)\n", s.Title, s.Type, state)
	fmt.Fprintf(w, "id: %s  last updated by: %s\n\n", s.ID, s.LastUpdatedBy)
	if strings.TrimSpace(s.Content) == "" {
		fmt.Fprintln(w, "(empty)")
	} else {
		fmt.Fprintln(w, s.Content)
	}
	if s.PreviousContent != nil {
		fmt.Fprintf(w, "\nprevious:\n%s\n", *s.PreviousContent)
	}
	fmt.Fprintln(w)
}

func runSections(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	sections, err := a.documents.Sections(ctx, args[0])
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, sections)
	}
	for _, s := range sections {
		printSection(w, s)
	}
	return nil
}

func runAccept(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	s, err := a.reconciler.Accept(ctx, args[0])
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, s)
	}
	printSection(w, *s)
	return nil
}

func runRevert(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	s, err := a.reconciler.Revert(ctx, args[0])
	if errors.Is(err, document.ErrNothingToRevert) {
		return fmt.Errorf("section %s has no pending AI rewrite", args[0])
	}
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, s)
	}
	printSection(w, *s)
	return nil
}

func runEdit(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	var edit document.Edit
	if opts.title != "" {
		edit.Title = &opts.title
	}
	if len(args) > 1 {
		content := strings.Join(args[1:], " ")
		edit.Content = &content
	}
	if edit.Title == nil && edit.Content == nil {
		return errors.New("usage: thinkpartner [-title <title>] edit <section> [text]")
	}
	s, err := a.reconciler.HumanEdit(ctx, args[0], edit, document.AuthorCoach)
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, s)
	}
	printSection(w, *s)
	return nil
}

func runSynthesize(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	if opts.reset {
		if err := a.synth.ResetCheckpoint(ctx, args[0]); err != nil {
			return err
		}
	}
	res, err := a.synth.Session(ctx, args[0])
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, res)
	}
	fmt.Fprintf(w, "considered %d messages, %d proposals, %d applied\n", res.Considered, len(res.Proposals), res.Applied)
	return nil
}

func runCheckpoints(ctx context.Context, a *app, w io.Writer, opts options, _ []string) error {
	all, err := a.synth.Checkpoints(ctx)
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, all)
	}
	if len(all) == 0 {
		fmt.Fprintln(w, "no checkpoints")
		return nil
	}
	clients := make([]string, 0, len(all))
	for id := range all {
		clients = append(clients, id)
	}
	sort.Strings(clients)
	for _, id := range clients {
		fmt.Fprintf(w, "%s\t%s\n", id, all[id].Format(time.RFC3339))
	}
	return nil
}

func runGaps(ctx context.Context, a *app, w io.Writer, _ options, args []string) error {
	sections, err := a.documents.Sections(ctx, args[0])
	if err != nil {
		return err
	}
	directive := gaps.Detect(sections)
	if directive == "" {
		fmt.Fprintln(w, "no gaps")
		return nil
	}
	fmt.Fprintln(w, directive)
	return nil
}

func runAttach(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	path := args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(name))

	att, err := a.profiles.AddAttachment(ctx, profile.Attachment{
		ClientID:      args[0],
		ObjectRef:     "file://" + abs,
		MimeType:      mimeType,
		Filename:      name,
		ExtractedText: a.extractor.Extract(ctx, mimeType, name, data),
	})
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		return emitJSON(w, att)
	}
	fmt.Fprintf(w, "%s\t%s\t%d chars extracted\n", att.ID, att.Filename, len(att.ExtractedText))
	return nil
}

func runReference(ctx context.Context, a *app, w io.Writer, _ options, args []string) error {
	body, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}
	ref, err := a.profiles.AddReference(ctx, args[0], args[1], string(body))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, ref.ID)
	return nil
}

func runMethodology(ctx context.Context, a *app, w io.Writer, _ options, args []string) error {
	switch args[0] {
	case "add":
		content, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("read methodology: %w", err)
		}
		m, err := a.profiles.AddMethodology(ctx, args[1], string(content))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, m.ID)
		return nil
	case "assign":
		return a.profiles.AssignMethodology(ctx, args[1], args[2], true)
	case "unassign":
		return a.profiles.AssignMethodology(ctx, args[1], args[2], false)
	default:
		return fmt.Errorf("unknown methodology subcommand: %s", args[0])
	}
}

func runPrompt(ctx context.Context, a *app, _ io.Writer, _ options, args []string) error {
	text := strings.Join(args[2:], " ")
	switch args[0] {
	case "role":
		return a.profiles.SetRolePrompt(ctx, args[1], text)
	case "task":
		return a.profiles.SetTaskPrompt(ctx, args[1], text)
	default:
		return fmt.Errorf("unknown prompt kind %q (expected role or task)", args[0])
	}
}

func runExercise(ctx context.Context, a *app, w io.Writer, opts options, args []string) error {
	switch args[0] {
	case "load":
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read exercise: %w", err)
		}
		var ex exercise.Exercise
		if err := yaml.Unmarshal(data, &ex); err != nil {
			return fmt.Errorf("parse exercise %s: %w", args[1], err)
		}
		created, err := a.exercises.Create(ctx, ex)
		if err != nil {
			return err
		}
		if opts.outputFmt == "json" {
			return emitJSON(w, created)
		}
		fmt.Fprintf(w, "%s\t%s\t%d steps\n", created.ID, created.Title, len(created.Steps))
		return nil
	case "start":
		if len(args) < 4 {
			return errors.New("usage: thinkpartner exercise start <client> <thread> <id>")
		}
		return a.exercises.Start(ctx, args[1], args[2], args[3])
	case "next":
		if len(args) < 3 {
			return errors.New("usage: thinkpartner exercise next <client> <thread>")
		}
		active, err := a.exercises.Advance(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		if !active {
			fmt.Fprintln(w, "exercise finished")
			return nil
		}
		sess, err := a.exercises.Active(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		if step := sess.CurrentStep(); step != nil {
			fmt.Fprintf(w, "step %d of %d: %s\n", sess.Current+1, len(sess.Exercise.Steps), step.Title)
		}
		return nil
	default:
		return fmt.Errorf("unknown exercise subcommand: %s", args[0])
	}
}

func runSweep(ctx context.Context, a *app, w io.Writer, _ options, _ []string) error {
	n, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	a.worker.Wait()
	fmt.Fprintf(w, "swept %d idle conversations\n", n)
	return nil
}
