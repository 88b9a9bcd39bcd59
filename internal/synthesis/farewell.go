package synthesis

import (
	"regexp"
	"strings"
	"unicode"
)

// farewellPhrases are sign-offs that end a coaching session.
var farewellPhrases = []string{
	"bye",
	"goodbye",
	"good bye",
	"bye for now",
	"see you",
	"see ya",
	"see you later",
	"see you next time",
	"talk soon",
	"talk to you later",
	"talk later",
	"ttyl",
	"catch you later",
	"until next time",
	"good night",
	"goodnight",
	"gotta go",
	"got to go",
	"have to go",
	"need to go",
	"signing off",
	"that's all for today",
	"thats all for today",
	"that is all for today",
	"that's it for today",
	"thats it for today",
	"take care",
}

// maxFarewellFiller is how many extra words a closing clause may carry
// around its sign-off ("OK that's all for today", "see you next week").
const maxFarewellFiller = 3

var (
	farewellLead  *regexp.Regexp
	farewellTrail *regexp.Regexp
)

func init() {
	quoted := make([]string, len(farewellPhrases))
	for i, p := range farewellPhrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	alt := strings.Join(quoted, "|")
	farewellLead = regexp.MustCompile(`(?i)^(?:` + alt + `)(?:\s+(.*))?$`)
	farewellTrail = regexp.MustCompile(`(?i)^(?:(.*)\s+)?(?:` + alt + `)$`)
}

// IsFarewell reports whether text closes with a session sign-off. Only
// the final sentence counts, and within it a comma or semicolon clause
// must open or end with a sign-off and carry little else. "Thanks, bye!"
// qualifies; "I need to go back to school next year" does not.
func IsFarewell(text string) bool {
	// Normalize curly apostrophes so "that’s all" matches.
	text = strings.ReplaceAll(text, "’", "'")

	last := lastSentence(text)
	if last == "" {
		return false
	}
	for _, clause := range strings.FieldsFunc(last, func(r rune) bool { return r == ',' || r == ';' }) {
		clause = strings.TrimFunc(clause, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r) && r != '\''
		})
		if clause == "" {
			continue
		}
		for _, re := range []*regexp.Regexp{farewellLead, farewellTrail} {
			if m := re.FindStringSubmatch(clause); m != nil && len(strings.Fields(m[1])) <= maxFarewellFiller {
				return true
			}
		}
	}
	return false
}

// lastSentence returns the final non-empty sentence of text.
func lastSentence(text string) string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}
