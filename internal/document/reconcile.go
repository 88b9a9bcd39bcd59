package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SectionRepo is the storage the Reconciler needs. *Store implements it.
type SectionRepo interface {
	GetSection(ctx context.Context, id string) (*Section, error)
	UpdateSection(ctx context.Context, sec *Section) error
}

// Reconciler applies AI proposals and human review decisions to sections.
// It takes no locks: concurrent writers to the same section resolve as
// last-writer-wins at the storage layer.
type Reconciler struct {
	sections SectionRepo
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler backed by repo.
func NewReconciler(repo SectionRepo, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		sections: repo,
		logger:   logger.With("component", "reconciler"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Propose records an AI-authored rewrite as pending review.
func (r *Reconciler) Propose(ctx context.Context, sectionID, content string) (*Section, error) {
	sec, err := r.sections.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	wasPending := sec.PendingReview
	sec.applyProposal(content, r.now())
	if err := r.sections.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	r.logger.Info("section update proposed",
		"section", sectionID,
		"title", sec.Title,
		"replaced_pending", wasPending,
	)
	return sec, nil
}

// Accept confirms a pending proposal. Accepting a stable section is a
// no-op and returns it unchanged.
func (r *Reconciler) Accept(ctx context.Context, sectionID string) (*Section, error) {
	sec, err := r.sections.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if !sec.acceptPending(r.now()) {
		return sec, nil
	}
	if err := r.sections.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	r.logger.Info("section proposal accepted", "section", sectionID)
	return sec, nil
}

// Revert restores the content that preceded the pending proposal. It
// returns ErrNothingToRevert when no proposal is pending.
func (r *Reconciler) Revert(ctx context.Context, sectionID string) (*Section, error) {
	sec, err := r.sections.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if err := sec.revertPending(r.now()); err != nil {
		return nil, err
	}
	if err := r.sections.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	r.logger.Info("section proposal reverted", "section", sectionID)
	return sec, nil
}

// HumanEdit applies a direct coach or client edit. Any pending AI proposal
// is discarded silently; the human edit always wins.
func (r *Reconciler) HumanEdit(ctx context.Context, sectionID string, edit Edit, actor Author) (*Section, error) {
	if actor != AuthorCoach && actor != AuthorClient {
		return nil, fmt.Errorf("human edit by %q: actor must be coach or client", actor)
	}
	sec, err := r.sections.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	discarded := sec.PendingReview
	sec.applyHumanEdit(edit, actor, r.now())
	if err := r.sections.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	r.logger.Info("section edited",
		"section", sectionID,
		"actor", actor,
		"discarded_pending", discarded,
	)
	return sec, nil
}
