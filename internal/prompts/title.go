package prompts

import "fmt"

// threadTitleTemplate asks for a short thread title. The single format
// verb is the opening exchange.
const threadTitleTemplate = `Write a short title (at most six words) for a coaching conversation that opens with the exchange below. Use the client's topic, not their name. Respond with the title only, no quotes and no punctuation at the end.

%s

Title:`

// ThreadTitlePrompt returns the prompt for naming a new thread.
func ThreadTitlePrompt(exchange string) string {
	return fmt.Sprintf(threadTitleTemplate, exchange)
}
