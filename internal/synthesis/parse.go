package synthesis

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/nugget/thinkpartner/internal/document"
)

// parseProposals extracts proposals from raw model output and drops any
// that name an unknown section, carry blank content, or would not change
// the section. ok is false when no JSON list could be found at all.
//
// Accepted shapes: a bare JSON array, an object with an "updates" array,
// either of those inside a fenced code block, or an array embedded in
// surrounding prose.
func parseProposals(output string, sections []document.Section) (proposals []Proposal, ok bool) {
	raw, ok := decodeOutput(output)
	if !ok {
		return nil, false
	}

	current := make(map[string]string, len(sections))
	for _, s := range sections {
		current[s.ID] = s.Content
	}

	seen := make(map[string]int)
	for _, p := range raw {
		p.SectionID = strings.TrimSpace(p.SectionID)
		content, known := current[p.SectionID]
		if !known {
			continue
		}
		p.NewContent = strings.TrimSpace(p.NewContent)
		if p.NewContent == "" || p.NewContent == strings.TrimSpace(content) {
			continue
		}
		// A later entry for the same section replaces an earlier one.
		if i, dup := seen[p.SectionID]; dup {
			proposals[i] = p
			continue
		}
		seen[p.SectionID] = len(proposals)
		proposals = append(proposals, p)
	}
	return proposals, true
}

func decodeOutput(output string) ([]Proposal, bool) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, false
	}
	if p, ok := decodeList(output); ok {
		return p, true
	}
	for _, block := range fencedBlocks([]byte(output)) {
		if p, ok := decodeList(block); ok {
			return p, true
		}
	}
	if i, j := strings.Index(output, "["), strings.LastIndex(output, "]"); i >= 0 && j > i {
		if p, ok := decodeList(output[i : j+1]); ok {
			return p, true
		}
	}
	if i, j := strings.Index(output, "{"), strings.LastIndex(output, "}"); i >= 0 && j > i {
		if p, ok := decodeList(output[i : j+1]); ok {
			return p, true
		}
	}
	return nil, false
}

func decodeList(s string) ([]Proposal, bool) {
	s = strings.TrimSpace(s)
	var list []Proposal
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list, true
	}
	var wrapped struct {
		Updates *[]Proposal `json:"updates"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil && wrapped.Updates != nil {
		return *wrapped.Updates, true
	}
	return nil, false
}

// fencedBlocks returns the bodies of every fenced code block in src.
func fencedBlocks(src []byte) []string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, buf.String())
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
