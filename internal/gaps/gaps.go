// Package gaps finds living-document sections that say too little and
// turns them into a conversational steering directive.
package gaps

import (
	"strings"
	"unicode/utf8"

	"github.com/nugget/thinkpartner/internal/document"
	"github.com/nugget/thinkpartner/internal/prompts"
)

// ThinThreshold is the trimmed content length, in characters, below
// which a section counts as thin.
const ThinThreshold = 30

// Thin reports whether a section's content is blank or under
// ThinThreshold characters once surrounding whitespace is trimmed.
func Thin(s document.Section) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s.Content)) < ThinThreshold
}

// Detect returns a directive naming every thin section in document
// order, or "" when no section is thin.
func Detect(sections []document.Section) string {
	var titles []string
	for _, s := range sections {
		if Thin(s) {
			titles = append(titles, s.Title)
		}
	}
	return prompts.GapDirective(titles)
}
