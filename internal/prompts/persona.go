package prompts

// defaultRoleTemplate seeds a new client's role prompt. Coaches usually
// rewrite it, so it stays generic.
const defaultRoleTemplate = `You are a thinking partner working alongside a professional coach. You help the client reflect, notice patterns, and clarify what matters to them. You do not give therapy or medical advice. You are warm, curious, and direct, and you never pretend to be the coach.`

// defaultTaskTemplate seeds a new client's response instructions.
const defaultTaskTemplate = `Keep replies short: two to four sentences unless the client asks for more. Ask at most one question per reply. Reflect the client's own words back before offering a new angle. Avoid lists unless the client asks for one.`

// DefaultRolePrompt returns the persona text given to new clients.
func DefaultRolePrompt() string {
	return defaultRoleTemplate
}

// DefaultTaskPrompt returns the response-style text given to new clients.
func DefaultTaskPrompt() string {
	return defaultTaskTemplate
}
