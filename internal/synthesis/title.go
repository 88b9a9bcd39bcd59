package synthesis

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/prompts"
)

// maxTitleRunes caps generated thread titles.
const maxTitleRunes = 80

// Title asks the model for a short thread title for an opening exchange.
func (s *Synthesizer) Title(ctx context.Context, ex conversation.Exchange) (string, error) {
	prompt := prompts.ThreadTitlePrompt(renderTranscript([]conversation.Message{ex.Human, ex.Assistant}))
	resp, err := s.deps.LLM.Chat(ctx, s.deps.Model, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelCall, err)
	}
	title := cleanTitle(resp.Message.Content)
	if title == "" {
		return "", fmt.Errorf("model returned an empty title")
	}
	return title, nil
}

// cleanTitle keeps the first non-empty line, strips wrapping quotes, a
// "Title:" label, and trailing punctuation.
func cleanTitle(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if len(line) >= 6 && strings.EqualFold(line[:6], "title:") {
		line = strings.TrimSpace(line[6:])
	}
	line = strings.Trim(line, "\"'`*")
	line = strings.TrimRight(line, ".!?:; ")
	if utf8.RuneCountInString(line) > maxTitleRunes {
		line = strings.TrimSpace(string([]rune(line)[:maxTitleRunes]))
	}
	return line
}
