// Package conversation stores the messages exchanged between a client, a
// human coach, and the assistant, grouped into threads.
package conversation

import (
	"regexp"
	"time"
)

// Speaker identifies which of the three parties authored a message.
// Prefix tagging for a two-role model transport happens only at that
// boundary (see the assembler); internally the speaker travels with the
// content.
type Speaker string

const (
	SpeakerClient    Speaker = "client"
	SpeakerCoach     Speaker = "coach"
	SpeakerAssistant Speaker = "ai"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	switch s {
	case SpeakerClient, SpeakerCoach, SpeakerAssistant:
		return true
	}
	return false
}

// Human reports whether the speaker is a person rather than the assistant.
func (s Speaker) Human() bool {
	return s == SpeakerClient || s == SpeakerCoach
}

// Message is one immutable conversational turn.
type Message struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	ThreadID      string    `json:"thread_id,omitempty"`
	Speaker       Speaker   `json:"speaker"`
	Content       string    `json:"content"`
	MentionsCoach bool      `json:"mentions_coach,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Thread groups a client's messages into a named conversation.
type Thread struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exchange is one human turn and the assistant reply that followed it.
type Exchange struct {
	Human     Message
	Assistant Message
}

var coachMention = regexp.MustCompile(`(?i)(^|[^\w@])@coach\b`)

// MentionsCoach reports whether a client message addresses the human coach
// directly with an @coach tag.
func MentionsCoach(content string) bool {
	return coachMention.MatchString(content)
}
