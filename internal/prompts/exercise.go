package prompts

import (
	"fmt"
	"strings"
)

// ExerciseStep is the prompt-facing view of one exercise step.
type ExerciseStep struct {
	Title        string
	Instructions string
	Guidance     string
}

// ExerciseDirectiveInput carries everything the exercise block needs.
// Current is a zero-based index into Steps.
type ExerciseDirectiveInput struct {
	Title       string
	Description string
	Steps       []ExerciseStep
	Current     int
}

// exerciseTemplate format verbs: (1) title, (2) description line,
// (3) step list, (4) current step number, (5) current step title,
// (6) current step instructions, (7) guidance block, (8) next step line.
const exerciseTemplate = `## Active Exercise: %s
%s
Steps:
%s

You are on step %d: %s

Step instructions (reproduce any text the client should read VERBATIM; do not paraphrase, summarize, or reorder it):
%s
%s
%s
Stay on the current step until the client has completed it. Do not skip ahead or reveal later steps' content.`

// ExerciseDirective renders the structured exercise block. It returns ""
// when there are no steps or Current is out of range.
func ExerciseDirective(in ExerciseDirectiveInput) string {
	if len(in.Steps) == 0 || in.Current < 0 || in.Current >= len(in.Steps) {
		return ""
	}

	var steps strings.Builder
	for i, s := range in.Steps {
		marker := "  "
		if i == in.Current {
			marker = "->"
		}
		fmt.Fprintf(&steps, "%s %d. %s", marker, i+1, s.Title)
		if i == in.Current {
			steps.WriteString(" (current)")
		}
		if i < len(in.Steps)-1 {
			steps.WriteByte('\n')
		}
	}

	cur := in.Steps[in.Current]

	description := ""
	if d := strings.TrimSpace(in.Description); d != "" {
		description = d + "\n"
	}

	guidance := ""
	if g := strings.TrimSpace(cur.Guidance); g != "" {
		guidance = "\nSupporting guidance for this step:\n" + g + "\n"
	}

	next := "This is the final step."
	if in.Current+1 < len(in.Steps) {
		next = "Next step: " + in.Steps[in.Current+1].Title
	}

	return fmt.Sprintf(exerciseTemplate,
		in.Title, description, steps.String(),
		in.Current+1, cur.Title, cur.Instructions, guidance, next)
}
