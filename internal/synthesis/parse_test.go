package synthesis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nugget/thinkpartner/internal/document"
)

func TestParseProposals(t *testing.T) {
	sections := []document.Section{
		{ID: "s1", Content: "Old overview"},
		{ID: "s2", Content: "Same"},
	}

	tests := []struct {
		name   string
		output string
		want   []Proposal
		wantOK bool
	}{
		{
			name:   "bare array",
			output: `[{"sectionId":"s1","newContent":"New overview"}]`,
			want:   []Proposal{{SectionID: "s1", NewContent: "New overview"}},
			wantOK: true,
		},
		{
			name:   "wrapped object",
			output: `{"updates":[{"sectionId":"s1","newContent":"Wrapped"}]}`,
			want:   []Proposal{{SectionID: "s1", NewContent: "Wrapped"}},
			wantOK: true,
		},
		{
			name:   "fenced block with prose",
			output: "Here you go:\n\n```json\n[{\"sectionId\":\"s1\",\"newContent\":\"Fenced\"}]\n```\n",
			want:   []Proposal{{SectionID: "s1", NewContent: "Fenced"}},
			wantOK: true,
		},
		{
			name:   "array embedded in prose",
			output: `Updates: [{"sectionId":"s1","newContent":"Inline"}] done.`,
			want:   []Proposal{{SectionID: "s1", NewContent: "Inline"}},
			wantOK: true,
		},
		{
			name:   "unknown ids, blank, and unchanged are dropped",
			output: `[{"sectionId":"nope","newContent":"x"},{"sectionId":"s1","newContent":"  "},{"sectionId":"s2","newContent":"Same"}]`,
			wantOK: true,
		},
		{
			name:   "later duplicate wins",
			output: `[{"sectionId":"s1","newContent":"first"},{"sectionId":"s1","newContent":"second"}]`,
			want:   []Proposal{{SectionID: "s1", NewContent: "second"}},
			wantOK: true,
		},
		{
			name:   "empty list",
			output: `[]`,
			wantOK: true,
		},
		{
			name:   "prose only",
			output: "No changes needed.",
		},
		{
			name:   "object without updates",
			output: `{"sectionId":"s1","newContent":"x"}`,
		},
		{
			name: "empty output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseProposals(tt.output, sections)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("proposals mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsFarewell(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Thanks, bye!", true},
		{"OK that’s all for today", true},
		{"Talk to you later", true},
		{"Goodnight", true},
		{"See you next week", true},
		{"This helped a lot. Bye for now :)", true},
		{"Great session; take care", true},
		{"I read a book about bylaws", false},
		{"What should I focus on?", false},
		{"", false},
		// Sign-off words inside an ordinary sentence.
		{"I need to go back to school next year", false},
		{"I had a good night's sleep for once", false},
		{"My mom says take care of yourself first", false},
		{"I can see you think I'm avoiding this", false},
		// A sign-off that does not close the message.
		{"Bye for now. Actually, one more question about pricing?", false},
	}
	for _, tt := range tests {
		if got := IsFarewell(tt.text); got != tt.want {
			t.Errorf("IsFarewell(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Career change", "Career change"},
		{"Title: Career change.", "Career change"},
		{"  \n'Quoted title'", "Quoted title"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanTitle(tt.in); got != tt.want {
			t.Errorf("cleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
