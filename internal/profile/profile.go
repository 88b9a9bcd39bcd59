// Package profile stores per-client configuration that shapes the
// assistant: persona and task prompts, enabled methodology frameworks,
// reference material, and file attachments with their extracted text.
package profile

import "time"

// Client is a coaching client.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Prompts are the client's two editable prompts. Role defines the
// persona; Task defines response style and is replaced wholesale by an
// active exercise's own instructions.
type Prompts struct {
	Role string `json:"role"`
	Task string `json:"task"`
}

// Methodology is a coaching framework that can be enabled per client.
type Methodology struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Enabled bool   `json:"enabled"`
}

// Reference is a titled block of material a coach attaches to a client.
type Reference struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is an uploaded file. The object itself lives in external
// storage; ExtractedText is filled once at upload time.
type Attachment struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	ObjectRef     string    `json:"object_ref"`
	MimeType      string    `json:"mime_type"`
	Filename      string    `json:"filename"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
