package interview

import (
	"testing"
)

func TestStage_Advance(t *testing.T) {
	tests := []struct {
		from, next, want Stage
	}{
		{StageIntro, StageClarify, StageClarify},
		{StageClarify, StageCoding, StageCoding},
		{StageCoding, StageClarify, StageCoding},
		{StageReview, StageCoding, StageReview},
		{StageWrapup, StageReview, StageWrapup},
		{StageIntro, StageWrapup, StageWrapup},
	}

	for _, tt := range tests {
		if got := tt.from.Advance(tt.next); got != tt.want {
			t.Errorf("%s.Advance(%s): expected %s, got %s", tt.from, tt.next, tt.want, got)
		}
	}
}

func TestStage_String(t *testing.T) {
	if StageCoding.String() != "coding" {
		t.Errorf("Expected 'coding', got '%s'", StageCoding.String())
	}
	if Stage(42).String() != "unknown" {
		t.Errorf("Expected 'unknown', got '%s'", Stage(42).String())
	}
}

func TestStageForUtterance(t *testing.T) {
	tests := []struct {
		text  string
		want  Stage
		found bool
	}{
		{"Let's start coding", StageCoding, true},
		{"I'm ready to write the code now", StageCoding, true},
		{"Can I begin implementing it?", StageCoding, true},
		{"The time complexity is O(n)", StageReview, true},
		{"Space complexity would be linear", StageReview, true},
		{"That runs in O(n log n)", StageReview, true},
		{"Let's code it, the big-O is fine", StageReview, true},
		{"Can the array be empty?", 0, false},
		{"I wrote a lot of Go last year", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := stageForUtterance(tt.text)
			if ok != tt.found || got != tt.want {
				t.Errorf("Expected (%s, %v), got (%s, %v)", tt.want, tt.found, got, ok)
			}
		})
	}
}
