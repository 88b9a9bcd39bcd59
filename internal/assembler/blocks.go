package assembler

import (
	"fmt"
	"strings"

	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/exercise"
	"github.com/nugget/thinkpartner/internal/profile"
	"github.com/nugget/thinkpartner/internal/prompts"
	"github.com/nugget/thinkpartner/internal/tokens"
)

func roleBlock(role string, ceiling int) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return ""
	}
	return tokens.Truncate(role, ceiling)
}

func methodologyBlock(ms []profile.Methodology, ceiling int) string {
	var parts []string
	for _, m := range ms {
		if !m.Enabled || strings.TrimSpace(m.Content) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## Methodology: %s\n%s", m.Name, strings.TrimSpace(m.Content)))
	}
	if len(parts) == 0 {
		return ""
	}
	return tokens.Truncate(strings.Join(parts, "\n\n"), ceiling)
}

// referenceBlock renders reference material with extracted attachment
// text nested beneath it. Each half is truncated to its own ceiling.
func referenceBlock(refs []profile.Reference, atts []profile.Attachment, refCeiling, attCeiling int) string {
	var parts []string
	for _, r := range refs {
		body := strings.TrimSpace(r.Body)
		if body == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## Reference: %s\n%s", r.Title, body))
	}

	var files []string
	for _, a := range atts {
		text := strings.TrimSpace(a.ExtractedText)
		if text == "" {
			continue
		}
		files = append(files, fmt.Sprintf("### File: %s\n%s", a.Filename, text))
	}

	if len(parts) == 0 && len(files) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Reference Material")
	if len(parts) > 0 {
		b.WriteString("\n\n")
		b.WriteString(tokens.Truncate(strings.Join(parts, "\n\n"), refCeiling))
	}
	if len(files) > 0 {
		b.WriteString("\n\n## Client Files\n\n")
		b.WriteString(tokens.Truncate(strings.Join(files, "\n\n"), attCeiling))
	}
	return b.String()
}

func memoryBlock(sections []document.Section, ceiling int) string {
	var parts []string
	for _, s := range sections {
		content := strings.TrimSpace(s.Content)
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n%s", s.Title, content))
	}
	if len(parts) == 0 {
		return ""
	}
	return tokens.Truncate(strings.Join(parts, "\n\n"), ceiling)
}

// instructionsBlock uses the active exercise's instructions in place of
// the task prompt, never both.
func instructionsBlock(task string, sess *exercise.Session, ceiling int) string {
	text := strings.TrimSpace(task)
	if sess != nil {
		if ex := strings.TrimSpace(sess.Exercise.Instructions); ex != "" {
			text = ex
		}
	}
	if text == "" {
		return ""
	}
	return tokens.Truncate(text, ceiling)
}

func exerciseBlock(sess *exercise.Session) string {
	if sess == nil {
		return ""
	}
	steps := make([]prompts.ExerciseStep, len(sess.Exercise.Steps))
	for i, s := range sess.Exercise.Steps {
		steps[i] = prompts.ExerciseStep{Title: s.Title, Instructions: s.Instructions, Guidance: s.Guidance}
	}
	return prompts.ExerciseDirective(prompts.ExerciseDirectiveInput{
		Title:       sess.Exercise.Title,
		Description: sess.Exercise.Description,
		Steps:       steps,
		Current:     sess.Current,
	})
}
