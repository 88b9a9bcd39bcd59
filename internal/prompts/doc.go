// Package prompts contains all LLM prompt templates used internally by
// thinkpartner.
//
// Prompt text is Go code rather than config files because it is program
// logic: templates use fmt.Sprintf interpolation, benefit from compile-time
// embedding, and can be validated by tests. Per-client persona and task
// prompts live in the database and are only seeded from here.
//
// Convention: each prompt category gets its own file (synthesis.go,
// exercise.go, gaps.go) with an exported function that accepts the dynamic
// parts and returns the fully interpolated prompt string.
package prompts
