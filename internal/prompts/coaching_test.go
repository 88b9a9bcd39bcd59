package prompts

import (
	"strings"
	"testing"
)

func TestGapDirective(t *testing.T) {
	if got := GapDirective(nil); got != "" {
		t.Errorf("GapDirective(nil) = %q, want empty", got)
	}

	got := GapDirective([]string{"Overview", "Current Focus Areas"})
	for _, phrase := range []string{"- Overview", "- Current Focus Areas", "Never announce"} {
		if !strings.Contains(got, phrase) {
			t.Errorf("gap directive missing %q", phrase)
		}
	}
}

func TestExerciseDirective(t *testing.T) {
	in := ExerciseDirectiveInput{
		Title:       "Wheel of Life",
		Description: "Rate eight life areas.",
		Steps: []ExerciseStep{
			{Title: "Intro", Instructions: "Explain the wheel."},
			{Title: "Rate", Instructions: "Read this exactly: 'Score each area 1-10.'", Guidance: "Be patient."},
			{Title: "Reflect", Instructions: "Ask which area matters most."},
		},
		Current: 1,
	}
	got := ExerciseDirective(in)

	phrases := []string{
		"## Active Exercise: Wheel of Life",
		"Rate eight life areas.",
		"   1. Intro",
		"-> 2. Rate (current)",
		"   3. Reflect",
		"You are on step 2: Rate",
		"Read this exactly: 'Score each area 1-10.'",
		"VERBATIM",
		"Supporting guidance for this step:\nBe patient.",
		"Next step: Reflect",
	}
	for _, p := range phrases {
		if !strings.Contains(got, p) {
			t.Errorf("exercise directive missing %q\n%s", p, got)
		}
	}
}

func TestExerciseDirective_FinalStepAndBounds(t *testing.T) {
	in := ExerciseDirectiveInput{
		Title:   "One",
		Steps:   []ExerciseStep{{Title: "Only", Instructions: "Do it."}},
		Current: 0,
	}
	got := ExerciseDirective(in)
	if !strings.Contains(got, "This is the final step.") {
		t.Error("expected final step marker")
	}
	if strings.Contains(got, "Supporting guidance") {
		t.Error("guidance block should be omitted when empty")
	}

	in.Current = 3
	if ExerciseDirective(in) != "" {
		t.Error("out-of-range step should render nothing")
	}
}

func TestSynthesisPrompts(t *testing.T) {
	inc := IncrementalSynthesisPrompt("SECTIONS", "EXCHANGE")
	ses := SessionSynthesisPrompt("SECTIONS", "TRANSCRIPT")

	for name, p := range map[string]string{"incremental": inc, "session": ses} {
		for _, phrase := range []string{"SECTIONS", `"sectionId"`, `"newContent"`, "[]"} {
			if !strings.Contains(p, phrase) {
				t.Errorf("%s prompt missing %q", name, phrase)
			}
		}
	}
	if !strings.Contains(inc, "conservative") {
		t.Error("incremental prompt should ask for conservative updates")
	}
	if !strings.Contains(ses, "REPLACE") {
		t.Error("session prompt should instruct replacement, not appending")
	}
}

func TestThreePartyExplanation(t *testing.T) {
	tests := []struct {
		name       string
		tagged     bool
		wantClient bool
	}{
		{"client turns tagged", true, true},
		{"client turns bare", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ThreePartyExplanation(tt.tagged)
			for _, phrase := range []string{"[COACH]:", "three participants"} {
				if !strings.Contains(got, phrase) {
					t.Errorf("explanation missing %q", phrase)
				}
			}
			if strings.Contains(got, "[CLIENT]:") != tt.wantClient {
				t.Errorf("mentions [CLIENT]: = %v, want %v", !tt.wantClient, tt.wantClient)
			}
			if strings.Contains(got, "%!") {
				t.Error("explanation has a formatting error")
			}
		})
	}
}
