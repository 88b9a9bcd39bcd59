// Package extract turns uploaded attachments into plain text for the
// context window. Extraction is best effort: formats it cannot read
// yield a short placeholder instead of an error, so an odd upload never
// blocks a conversation.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor converts raw attachment bytes to text.
type Extractor interface {
	Extract(ctx context.Context, mimeType, filename string, data []byte) string
}

// DefaultMaxBytes caps how much of an upload is read.
const DefaultMaxBytes = 1 << 20

// Default handles plain text, Markdown, and HTML.
type Default struct {
	MaxBytes int
	logger   *slog.Logger
}

// New returns a Default extractor.
func New(logger *slog.Logger) *Default {
	if logger == nil {
		logger = slog.Default()
	}
	return &Default{MaxBytes: DefaultMaxBytes, logger: logger.With("component", "extract")}
}

// Extract returns readable text for data. It never fails.
func (d *Default) Extract(ctx context.Context, mimeType, filename string, data []byte) string {
	if d.MaxBytes > 0 && len(data) > d.MaxBytes {
		data = data[:d.MaxBytes]
	}

	kind := detect(mimeType, filename)
	var text string
	switch kind {
	case "text/plain":
		text = strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
	case "text/markdown":
		text = markdownText(data)
	case "text/html":
		text = htmlText(string(data))
	default:
		d.logger.Debug("no extractor for attachment", "filename", filename, "mime", mimeType)
		return placeholder(filename, mimeType)
	}

	d.logger.Log(ctx, slog.LevelDebug, "attachment extracted",
		"filename", filename,
		"kind", kind,
		"bytes", len(data),
		"chars", utf8.RuneCountInString(text),
	)
	if text == "" {
		return placeholder(filename, mimeType)
	}
	return text
}

// detect picks an extractor from the declared MIME type, falling back to
// the file extension when the type is missing or generic.
func detect(mimeType, filename string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base = ""
	}
	switch base {
	case "text/plain", "text/csv", "application/json":
		return "text/plain"
	case "text/markdown", "text/x-markdown":
		return "text/markdown"
	case "text/html", "application/xhtml+xml":
		return "text/html"
	case "", "application/octet-stream":
	default:
		return base
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".csv", ".json", ".log":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	}
	return "application/octet-stream"
}

func placeholder(filename, mimeType string) string {
	if mimeType == "" {
		mimeType = "unknown type"
	}
	return fmt.Sprintf("[Attachment %q (%s): text could not be extracted]", filename, mimeType)
}
