// Package document stores each client's living document and implements
// the review state machine that governs AI-proposed section rewrites.
//
// A section is either Stable or PendingReview. An AI proposal moves it to
// PendingReview and remembers the last human-approved content so a coach
// can revert. Human edits always win: they discard any pending proposal
// without a conflict signal (last-writer-wins).
package document

import (
	"errors"
	"time"
)

// SectionType tags what kind of knowledge a section holds.
type SectionType string

const (
	TypeOverview  SectionType = "overview"
	TypeHighlight SectionType = "highlight"
	TypeFocus     SectionType = "focus"
	TypeContext   SectionType = "context"
	TypeCustom    SectionType = "custom"
)

// Valid reports whether t is one of the known section types.
func (t SectionType) Valid() bool {
	switch t {
	case TypeOverview, TypeHighlight, TypeFocus, TypeContext, TypeCustom:
		return true
	}
	return false
}

// Author records who last changed a section.
type Author string

const (
	AuthorCoach  Author = "coach"
	AuthorAI     Author = "ai"
	AuthorClient Author = "client"
)

var (
	// ErrNotFound is returned when a document or section does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNothingToRevert is returned by Revert when no proposal is pending.
	ErrNothingToRevert = errors.New("nothing to revert")
)

// Document is the per-client container of sections.
type Document struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Section is one named block of a client's living document.
//
// PreviousContent is non-nil exactly when PendingReview is true. It holds
// the content as it stood before the first unreviewed AI proposal, which
// may itself be the empty string for a section that was blank.
type Section struct {
	ID              string      `json:"id"`
	DocumentID      string      `json:"document_id"`
	Type            SectionType `json:"type"`
	Title           string      `json:"title"`
	Content         string      `json:"content"`
	PreviousContent *string     `json:"previous_content,omitempty"`
	LastUpdatedBy   Author      `json:"last_updated_by"`
	PendingReview   bool        `json:"pending_review"`
	SortOrder       int         `json:"sort_order"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Edit carries the fields a human may change directly. Nil fields are
// left untouched.
type Edit struct {
	Title   *string
	Content *string
}

// applyProposal moves the section into PendingReview with content as the
// visible text. A second proposal on an already pending section replaces
// the content but keeps the original PreviousContent, so a revert always
// lands on the last human-approved state.
func (s *Section) applyProposal(content string, now time.Time) {
	if !s.PendingReview {
		prev := s.Content
		s.PreviousContent = &prev
		s.PendingReview = true
	}
	s.Content = content
	s.LastUpdatedBy = AuthorAI
	s.UpdatedAt = now
}

// acceptPending confirms the pending proposal. It is a no-op on a stable
// section and reports whether anything changed.
func (s *Section) acceptPending(now time.Time) bool {
	if !s.PendingReview && s.PreviousContent == nil {
		return false
	}
	s.PendingReview = false
	s.PreviousContent = nil
	s.UpdatedAt = now
	return true
}

// revertPending restores the content from before the pending proposal.
func (s *Section) revertPending(now time.Time) error {
	if s.PreviousContent == nil {
		return ErrNothingToRevert
	}
	s.Content = *s.PreviousContent
	s.PreviousContent = nil
	s.PendingReview = false
	s.LastUpdatedBy = AuthorCoach
	s.UpdatedAt = now
	return nil
}

// applyHumanEdit writes a direct human change and discards any pending
// proposal.
func (s *Section) applyHumanEdit(e Edit, actor Author, now time.Time) {
	if e.Title != nil {
		s.Title = *e.Title
	}
	if e.Content != nil {
		s.Content = *e.Content
	}
	s.PendingReview = false
	s.PreviousContent = nil
	s.LastUpdatedBy = actor
	s.UpdatedAt = now
}

// defaultSections are seeded into every new document.
var defaultSections = []struct {
	Type  SectionType
	Title string
}{
	{TypeOverview, "Overview"},
	{TypeHighlight, "Highlights"},
	{TypeFocus, "Current Focus Areas"},
	{TypeContext, "Context & Background"},
}
