package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// GeminiClient is a client for Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiClient creates a Gemini client for the given API key.
func NewGeminiClient(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, logger: logger.With("provider", "gemini")}, nil
}

// Chat sends a chat completion request.
func (c *GeminiClient) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	contents, system := convertToGemini(messages)

	var cfg *genai.GenerateContentConfig
	if system != nil {
		cfg = &genai.GenerateContentConfig{SystemInstruction: system}
	}

	c.logger.Debug("preparing request", "model", model, "messages", len(contents))

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	result := &ChatResponse{
		Model:         model,
		CreatedAt:     time.Now(),
		Message:       Message{Role: RoleAssistant, Content: resp.Text()},
		TotalDuration: time.Since(start),
	}
	if resp.ModelVersion != "" {
		result.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		result.InputTokens = int(u.PromptTokenCount)
		result.OutputTokens = int(u.CandidatesTokenCount)
	}

	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"elapsed", result.TotalDuration,
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)
	return result, nil
}

// Ping lists one page of models to confirm the key is accepted.
func (c *GeminiClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return fmt.Errorf("gemini ping: %w", err)
	}
	return nil
}

// convertToGemini maps assistant turns to the model role and lifts system
// text into a system instruction.
func convertToGemini(messages []Message) ([]*genai.Content, *genai.Content) {
	systemText, turns := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	var system *genai.Content
	if systemText != "" {
		system = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	return contents, system
}
