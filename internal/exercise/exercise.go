// Package exercise stores structured multi-step coaching exercises and
// tracks which step each (client, thread) pair is on.
package exercise

// Exercise is a predefined guided activity. While active, its
// Instructions replace the client's task prompt.
type Exercise struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Steps        []Step `json:"steps" yaml:"steps"`
}

// Step is one ordered stage of an exercise.
type Step struct {
	ID           string `json:"id" yaml:"id"`
	Order        int    `json:"order" yaml:"order"`
	Title        string `json:"title" yaml:"title"`
	Instructions string `json:"instructions" yaml:"instructions"`
	Guidance     string `json:"guidance,omitempty" yaml:"guidance,omitempty"`
}

// Session is the derived, per-(client, thread) view of an exercise in
// progress. Current indexes Exercise.Steps.
type Session struct {
	Exercise Exercise
	Current  int
}

// CurrentStep returns the active step, or nil when Current is out of
// range.
func (s *Session) CurrentStep() *Step {
	if s == nil || s.Current < 0 || s.Current >= len(s.Exercise.Steps) {
		return nil
	}
	return &s.Exercise.Steps[s.Current]
}

// NextStep returns the step after the current one, or nil on the last.
func (s *Session) NextStep() *Step {
	if s == nil || s.Current+1 >= len(s.Exercise.Steps) || s.Current < 0 {
		return nil
	}
	return &s.Exercise.Steps[s.Current+1]
}
