package prompts

import "fmt"

// synthesisOutputContract is shared by both synthesis prompts. The model
// must answer with a bare JSON array; anything else is discarded.
const synthesisOutputContract = `Respond with a JSON array only, no prose and no code fence. Each element is an object:
{"sectionId": "<id from the list above>", "newContent": "<complete replacement text>"}

Use only section ids that appear above. Omit sections that need no change. If nothing should change, respond with [].`

// incrementalTemplate format verbs: (1) current sections block,
// (2) exchange transcript, (3) output contract.
const incrementalTemplate = `You maintain a coaching client's living document. Below are its current sections, followed by the latest exchange in the conversation.

Only propose an update when this exchange reveals clearly new, durable information about the client (a goal, a change in circumstances, a realization, a commitment). Small talk, restatements, and the assistant's own suggestions are not new information. Be conservative: most exchanges need no update.

When you do update a section, rewrite it as a complete, distilled summary that integrates the new information. Respect each section's word limit.

Current sections:
%s

Latest exchange:
%s

%s`

// sessionTemplate format verbs: (1) current sections block,
// (2) session transcript, (3) output contract.
const sessionTemplate = `You maintain a coaching client's living document. A conversation session has just ended. Below are the document's current sections, followed by every message since the document was last synthesized.

Resynthesize each section that the session changed. REPLACE the section content with a fresh, distilled summary of everything known; do not append to the old text and do not keep a running log of sessions. Drop details that are no longer true. Respect each section's word limit.

Current sections:
%s

Session transcript:
%s

%s`

// IncrementalSynthesisPrompt returns the prompt for a single-exchange
// update. sections is a rendered list of ids, titles, limits, and content.
func IncrementalSynthesisPrompt(sections, exchange string) string {
	return fmt.Sprintf(incrementalTemplate, sections, exchange, synthesisOutputContract)
}

// SessionSynthesisPrompt returns the prompt for an end-of-session
// resynthesis over the transcript since the last checkpoint.
func SessionSynthesisPrompt(sections, transcript string) string {
	return fmt.Sprintf(sessionTemplate, sections, transcript, synthesisOutputContract)
}
