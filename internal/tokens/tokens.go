// Package tokens approximates model token counts from text length.
//
// The estimate is deliberately cheap: one token per four characters,
// rounded up. It is not a tokenizer, and callers must tolerate slight
// over- or under-estimation. Every function here is pure and total.
package tokens

import "unicode/utf8"

// CharsPerToken is the character-to-token ratio used by Estimate.
const CharsPerToken = 4

// Ellipsis is appended to text that Truncate shortens.
const Ellipsis = "..."

// Estimate returns ceil(chars/4) where chars is the rune count of text.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Truncate returns text unchanged when it fits in maxTokens. Otherwise it
// keeps the first maxTokens*4-3 characters and appends Ellipsis, so the
// result is exactly maxTokens*4 characters long. A non-positive ceiling
// yields just the marker.
func Truncate(text string, maxTokens int) string {
	if Estimate(text) <= maxTokens {
		return text
	}
	keep := maxTokens*CharsPerToken - len(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	return prefix(text, keep) + Ellipsis
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
