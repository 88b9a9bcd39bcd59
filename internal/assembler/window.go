package assembler

import (
	"slices"

	"github.com/nugget/thinkpartner/internal/conversation"
	"github.com/nugget/thinkpartner/internal/llm"
	"github.com/nugget/thinkpartner/internal/tokens"
)

// Speaker prefixes used at the model boundary.
const (
	CoachPrefix   = "[COACH]: "
	ClientPrefix  = "[CLIENT]: "
	MentionPrefix = "(addressing the coach) "
)

// SelectWindow picks the longest run of recent messages that fits
// ceiling and returns it oldest first.
//
// candidates must be newest first. current is the incoming message and is
// always the final element, whether or not it has been stored: a stored
// copy (matched by ID) is lifted out of candidates, its estimate is
// reserved from the ceiling, and it is appended last. A current message
// larger than the ceiling on its own is still returned, alone. A zero
// current is ignored. Selection stops at the first message that would
// overflow, so the rest of the result is always a contiguous suffix of
// the history.
func SelectWindow(candidates []conversation.Message, current conversation.Message, ceiling int) []conversation.Message {
	hasCurrent := current.Content != "" || current.ID != ""
	if current.ID != "" {
		candidates = slices.DeleteFunc(slices.Clone(candidates), func(m conversation.Message) bool {
			return m.ID == current.ID
		})
	}

	available := ceiling
	if hasCurrent {
		available -= tokens.Estimate(current.Content)
	}

	var (
		picked []conversation.Message
		total  int
	)
	for _, m := range candidates {
		est := tokens.Estimate(m.Content)
		if est+total > available {
			break
		}
		total += est
		picked = append(picked, m)
	}
	slices.Reverse(picked)

	if hasCurrent {
		picked = append(picked, current)
	}
	return picked
}

// Relabel converts messages to the two-role model transport, tagging
// human turns with their speaker. Client turns are only tagged when
// threeWay is set.
func Relabel(msgs []conversation.Message, threeWay bool) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Speaker {
		case conversation.SpeakerAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case conversation.SpeakerCoach:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: CoachPrefix + m.Content})
		default:
			content := m.Content
			if m.MentionsCoach {
				content = MentionPrefix + content
			}
			if threeWay {
				content = ClientPrefix + content
			}
			out = append(out, llm.Message{Role: llm.RoleUser, Content: content})
		}
	}
	return out
}
