package synthesis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/thinkpartner/internal/conversation"
)

// ThreadTitles persists generated thread titles.
type ThreadTitles interface {
	SetThreadTitle(ctx context.Context, threadID, title string) error
}

// WorkerConfig controls background synthesis.
type WorkerConfig struct {
	// Incremental enables per-exchange synthesis.
	Incremental bool
	// Timeout bounds each background model call. Default: 2 minutes.
	Timeout time.Duration
}

// Worker runs synthesis and title generation in the background. Every
// trigger is fire-and-forget: errors are logged and never reach the
// caller. Only one session synthesis runs per client at a time.
type Worker struct {
	synth  *Synthesizer
	titles ThreadTitles
	config WorkerConfig
	logger *slog.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	sessions map[string]bool
}

// NewWorker creates a Worker. titles may be nil to disable title
// generation.
func NewWorker(synth *Synthesizer, titles ThreadTitles, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Worker{
		synth:    synth,
		titles:   titles,
		config:   cfg,
		logger:   logger.With("component", "synthesis_worker"),
		sessions: make(map[string]bool),
	}
}

// Incremental schedules synthesis of a single exchange when enabled.
func (w *Worker) Incremental(clientID string, ex conversation.Exchange) {
	if !w.config.Incremental {
		return
	}
	w.spawn("incremental", clientID, func(ctx context.Context) error {
		_, err := w.synth.Incremental(ctx, clientID, ex)
		return err
	})
}

// Session schedules a session-level synthesis. It reports false when
// one is already running for the client.
func (w *Worker) Session(clientID string) bool {
	w.mu.Lock()
	if w.sessions[clientID] {
		w.mu.Unlock()
		w.logger.Debug("session synthesis already running", "client", clientID)
		return false
	}
	w.sessions[clientID] = true
	w.mu.Unlock()

	w.spawn("session", clientID, func(ctx context.Context) error {
		defer func() {
			w.mu.Lock()
			delete(w.sessions, clientID)
			w.mu.Unlock()
		}()
		_, err := w.synth.Session(ctx, clientID)
		return err
	})
	return true
}

// Title schedules title generation for a thread.
func (w *Worker) Title(clientID, threadID string, ex conversation.Exchange) {
	if w.titles == nil || threadID == "" {
		return
	}
	w.spawn("title", clientID, func(ctx context.Context) error {
		title, err := w.synth.Title(ctx, ex)
		if err != nil {
			return err
		}
		if err := w.titles.SetThreadTitle(ctx, threadID, title); err != nil {
			return err
		}
		w.logger.Info("thread titled", "thread", threadID, "title", title)
		return nil
	})
}

// Wait blocks until every scheduled task has finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) spawn(task, clientID string, fn func(ctx context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("background task panicked", "task", task, "client", clientID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), w.config.Timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			w.logger.Warn("background task failed", "task", task, "client", clientID, "error", err)
		}
	}()
}
