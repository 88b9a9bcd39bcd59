package prompts

import (
	"fmt"
	"strings"
)

// gapTemplate steers the assistant toward missing knowledge. The single
// format verb is a bulleted list of section titles.
const gapTemplate = `## Knowledge Gaps
The client's living document has little or nothing in these sections:
%s

When it fits the flow of the conversation, ask questions that would naturally surface this information. Never announce that you are collecting information, never mention the document or its sections, and never ask more than one such question per reply. The client's current topic always comes first.`

// GapDirective returns the steering block for the given thin section
// titles. It returns "" when titles is empty.
func GapDirective(titles []string) string {
	if len(titles) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range titles {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(t)
	}
	return fmt.Sprintf(gapTemplate, b.String())
}
