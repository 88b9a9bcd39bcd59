package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type fakeClient struct {
	name    string
	pingErr error
	calls   int
}

func (f *fakeClient) Chat(_ context.Context, model string, _ []Message) (*ChatResponse, error) {
	f.calls++
	return &ChatResponse{Model: model, Message: Message{Role: RoleAssistant, Content: f.name}}, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func TestRouterChat(t *testing.T) {
	local := &fakeClient{name: "local"}
	cloud := &fakeClient{name: "cloud"}

	r := NewRouter("ollama", local)
	r.Register("anthropic", cloud)
	r.Route("claude-x", "anthropic")
	r.Route("gemini-x", "gemini")

	tests := []struct {
		model   string
		want    string
		wantErr bool
	}{
		{"claude-x", "cloud", false},
		{"qwen3:8b", "local", false},
		{"gemini-x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			resp, err := r.Chat(context.Background(), tt.model, nil)
			if tt.wantErr {
				if !errors.Is(err, ErrNoProvider) {
					t.Fatalf("err = %v, want ErrNoProvider", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Chat: %v", err)
			}
			if resp.Message.Content != tt.want {
				t.Errorf("routed to %s, want %s", resp.Message.Content, tt.want)
			}
		})
	}
}

func TestRouterWithoutDefault(t *testing.T) {
	r := NewRouter("ollama", nil)
	if _, err := r.Chat(context.Background(), "x", nil); !errors.Is(err, ErrNoProvider) {
		t.Errorf("Chat err = %v, want ErrNoProvider", err)
	}
	if err := r.Ping(context.Background()); err == nil {
		t.Error("expected ping error with no providers")
	}
}

func TestRouterPing(t *testing.T) {
	def := &fakeClient{}
	r := NewRouter("ollama", def)
	r.Register("ollama", def)
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	r.Register("broken", &fakeClient{pingErr: errors.New("down")})
	err := r.Ping(context.Background())
	if err == nil || !strings.Contains(err.Error(), "provider broken") {
		t.Errorf("Ping err = %v, want broken provider named", err)
	}
}

func TestConvertToGemini(t *testing.T) {
	contents, system := convertToGemini([]Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	if system == nil || system.Parts[0].Text != "be kind" {
		t.Errorf("system = %+v", system)
	}
	if len(contents) != 2 {
		t.Fatalf("contents = %d", len(contents))
	}
	if contents[1].Role != string(genai.RoleModel) {
		t.Errorf("assistant role = %s", contents[1].Role)
	}

	if _, sys := convertToGemini([]Message{{Role: RoleUser, Content: "x"}}); sys != nil {
		t.Error("expected nil system instruction")
	}
}
