package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConvertToAnthropic(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "You are a thinking partner."},
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "[COACH]: Check in on goals."},
		{Role: RoleUser, Content: "[CLIENT]: I finished the draft."},
		{Role: RoleAssistant, Content: "Nice work."},
	}

	result, system := convertToAnthropic(messages)

	if system != "You are a thinking partner.\n\nBe brief." {
		t.Errorf("system = %q", system)
	}
	if len(result) != 2 {
		t.Fatalf("expected consecutive user turns folded into 2 messages, got %d", len(result))
	}
	if !strings.Contains(result[0].Content, "[COACH]") || !strings.Contains(result[0].Content, "[CLIENT]") {
		t.Errorf("folded user content = %q", result[0].Content)
	}
	if result[1].Role != RoleAssistant {
		t.Errorf("second role = %s", result[1].Role)
	}
}

func TestAnthropicChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "role" || len(req.Messages) != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there."}],
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", nil)
	c.url = srv.URL

	resp, err := c.Chat(context.Background(), "claude-test", []Message{
		{Role: RoleSystem, Content: "role"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Hello there." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestAnthropicChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{"unauthorized", http.StatusUnauthorized, "invalid API key"},
		{"rate limited", http.StatusTooManyRequests, "anthropic API error 429"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewAnthropicClient("k", nil)
			c.url = srv.URL
			_, err := c.Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "hi"}})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
