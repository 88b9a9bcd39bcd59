package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nugget/thinkpartner/internal/assembler"
	"github.com/nugget/thinkpartner/internal/budget"
	"github.com/nugget/thinkpartner/internal/buildinfo"
	"github.com/nugget/thinkpartner/internal/chat"
	"github.com/nugget/thinkpartner/internal/config"
	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/exercise"
	"github.com/nugget/thinkpartner/internal/extract"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/opstate"
	"github.com/nugget/thinkpartner/internal/profile"
	"github.com/nugget/thinkpartner/internal/scheduler"
	"github.com/nugget/thinkpartner/internal/synthesis"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// app holds every wired component for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	profiles      *profile.Store
	documents     *document.Store
	reconciler    *document.Reconciler
	conversations *conversation.Store
	exercises     *exercise.Store
	state         *opstate.Store

	llm       llm.Client
	assembler *assembler.Assembler
	synth     *synthesis.Synthesizer
	worker    *synthesis.Worker
	chat      *chat.Service
	sweeper   *scheduler.Sweeper
	extractor extract.Extractor
}

// openApp loads config, opens the database, and wires all components.
// Logs go to w.
func openApp(ctx context.Context, w io.Writer, configPath string) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger(w)
	logger.Debug("config loaded", "path", cfgPath, "version", buildinfo.Version)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DatabasePath()+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	if err := a.wire(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	var err error
	logger := a.logger

	if a.profiles, err = profile.NewStore(a.db, logger); err != nil {
		return fmt.Errorf("open profile store: %w", err)
	}
	if a.documents, err = document.NewStore(a.db, logger); err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	if a.conversations, err = conversation.NewStore(a.db, logger); err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	if a.exercises, err = exercise.NewStore(a.db, logger); err != nil {
		return fmt.Errorf("open exercise store: %w", err)
	}
	if a.state, err = opstate.NewStore(a.db, logger); err != nil {
		return fmt.Errorf("open operational state store: %w", err)
	}
	a.reconciler = document.NewReconciler(a.documents, logger)

	if a.llm, err = createLLMClient(ctx, a.cfg, logger); err != nil {
		return err
	}

	a.assembler = assembler.New(assembler.Sources{
		Profiles:  a.profiles,
		Sections:  a.documents,
		History:   a.conversations,
		Exercises: a.exercises,
	}, assembler.Options{
		Budget:   budget.Default(),
		ThreeWay: a.cfg.Conversation.ThreeWay,
	}, logger)

	a.synth = synthesis.New(synthesis.Deps{
		LLM:         a.llm,
		Model:       a.cfg.BackgroundModel(),
		Sections:    a.documents,
		Proposer:    a.reconciler,
		Messages:    a.conversations,
		Checkpoints: a.state,
	}, logger)
	a.worker = synthesis.NewWorker(a.synth, a.conversations, synthesis.WorkerConfig{
		Incremental: a.cfg.Synthesis.Incremental,
		Timeout:     a.cfg.Synthesis.Timeout,
	}, logger)

	a.chat = chat.NewService(a.conversations, a.assembler, a.llm, a.cfg.Models.Default, a.worker, logger)

	a.sweeper, err = scheduler.New(a.conversations, a.synth, a.worker, scheduler.Config{
		Schedule: a.cfg.Sweep.Schedule,
		Idle:     a.cfg.Synthesis.SessionIdle,
	}, logger)
	if err != nil {
		return err
	}

	a.extractor = extract.New(logger)
	return nil
}

// Close waits for background work and closes the database.
func (a *app) Close() error {
	a.sweeper.Stop()
	a.worker.Wait()
	return a.db.Close()
}

// createLLMClient builds a Router with Ollama as the default provider
// and Anthropic and Gemini registered when their keys are set.
func createLLMClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	router := llm.NewRouter("ollama", llm.NewOllamaClient(cfg.Models.OllamaURL, logger))

	if cfg.Anthropic.APIKey != "" {
		router.Register("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger))
		logger.Debug("Anthropic provider configured")
	}
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		router.Register("gemini", gemini)
		logger.Debug("Gemini provider configured")
	}

	for model, provider := range cfg.Models.Providers {
		router.Route(model, provider)
	}

	logger.Debug("LLM client initialized",
		"default_model", cfg.Models.Default,
		"background_model", cfg.BackgroundModel())
	return router, nil
}
