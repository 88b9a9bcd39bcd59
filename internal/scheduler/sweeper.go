// Package scheduler runs periodic session synthesis for clients whose
// conversations have gone quiet without an explicit sign-off.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nugget/thinkpartner/internal/conversation"
)

// Activity reports each client's latest message time.
type Activity interface {
	LatestActivity(ctx context.Context) ([]conversation.Activity, error)
}

// Checkpoints reports the last message time a session synthesis
// considered for a client.
type Checkpoints interface {
	Checkpoint(ctx context.Context, clientID string) (time.Time, bool, error)
}

// Trigger schedules a session synthesis. It reports false when one is
// already running for the client.
type Trigger interface {
	Session(clientID string) bool
}

// Config controls the sweep.
type Config struct {
	// Schedule is a five-field cron expression or descriptor such as
	// "@every 15m". Default: "*/15 * * * *".
	Schedule string
	// Idle is how long a conversation must be quiet before it is swept.
	// Default: 30 minutes.
	Idle time.Duration
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{Schedule: "*/15 * * * *", Idle: 30 * time.Minute}
}

// Sweeper finds idle conversations with unsynthesized messages and
// triggers session synthesis for them on a cron schedule.
type Sweeper struct {
	activity    Activity
	checkpoints Checkpoints
	trigger     Trigger
	config      Config
	schedule    cron.Schedule
	logger      *slog.Logger
	now         func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates a Sweeper. It fails on an invalid schedule.
func New(activity Activity, checkpoints Checkpoints, trigger Trigger, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	d := DefaultConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = d.Schedule
	}
	if cfg.Idle <= 0 {
		cfg.Idle = d.Idle
	}
	sched, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", cfg.Schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		activity:    activity,
		checkpoints: checkpoints,
		trigger:     trigger,
		config:      cfg,
		schedule:    sched,
		logger:      logger.With("component", "sweeper"),
		now:         time.Now,
	}, nil
}

// Start begins periodic sweeps. It reports whether the sweeper
// transitioned from stopped to running.
func (s *Sweeper) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return false
	}

	s.cron = cron.New(cron.WithParser(parser))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}))
	s.cron.Start()

	s.logger.Info("sweeper started", "schedule", s.config.Schedule, "idle", s.config.Idle)
	return true
}

// Stop halts periodic sweeps and waits for a running sweep to finish.
// It reports whether the sweeper transitioned from running to stopped.
func (s *Sweeper) Stop() bool {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return false
	}

	select {
	case <-c.Stop().Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("sweeper stop timed out")
	}
	s.logger.Info("sweeper stopped")
	return true
}

// Running reports whether periodic sweeps are active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Sweep runs one pass and returns the number of clients triggered.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	activity, err := s.activity.LatestActivity(ctx)
	if err != nil {
		return 0, fmt.Errorf("load activity: %w", err)
	}

	cutoff := s.now().Add(-s.config.Idle)
	triggered := 0
	for _, a := range activity {
		if a.LastMessage.After(cutoff) {
			continue
		}
		cp, ok, err := s.checkpoints.Checkpoint(ctx, a.ClientID)
		if err != nil {
			s.logger.Warn("failed to read checkpoint", "client", a.ClientID, "error", err)
			continue
		}
		if ok && !a.LastMessage.After(cp) {
			continue
		}
		if s.trigger.Session(a.ClientID) {
			triggered++
			s.logger.Debug("idle conversation swept", "client", a.ClientID, "last_message", a.LastMessage)
		}
	}

	if triggered > 0 {
		s.logger.Info("sweep triggered session synthesis", "clients", triggered)
	}
	return triggered, nil
}
