package prompts

import "fmt"

// threePartyTemplate explains how to read the conversation turns. The
// assembler tags coach turns (and, in three-way mode, client turns) with
// a speaker prefix because the model transport only knows "user" and
// "assistant".
const threePartyTemplate = `## Conversation Participants
This conversation has three participants:
- The client, whose turns are %s
- The client's human coach, whose turns are prefixed with [COACH]:
- You, the assistant.

Both the client and the coach appear to you as the "user" role. %s When the coach speaks, treat it as guidance from a colleague: follow their lead, and address the client unless the coach asks you something directly. When a client turn is marked as mentioning the coach, the client is addressing the coach; acknowledge it briefly and leave room for the coach to answer. Never add a prefix to your own replies.`

// ThreePartyExplanation returns the block describing the
// client/coach/assistant conversation model. clientTagged must match
// whether client turns carry a [CLIENT]: prefix.
func ThreePartyExplanation(clientTagged bool) string {
	if clientTagged {
		return fmt.Sprintf(threePartyTemplate,
			"prefixed with [CLIENT]:",
			"Read the prefix to know who is speaking.")
	}
	return fmt.Sprintf(threePartyTemplate,
		"unprefixed.",
		"A user turn without a prefix is the client speaking.")
}
