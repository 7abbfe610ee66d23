package interview

import (
	"regexp"
)

// Stage is the phase of an interview. Stages only move forward; wrapup is
// the last stage and therefore overrides every other.
type Stage int

const (
	StageIntro Stage = iota
	StageClarify
	StageCoding
	StageReview
	StageWrapup
)

func (s Stage) String() string {
	switch s {
	case StageIntro:
		return "intro"
	case StageClarify:
		return "clarify"
	case StageCoding:
		return "coding"
	case StageReview:
		return "review"
	case StageWrapup:
		return "wrapup"
	default:
		return "unknown"
	}
}

// Advance returns next if it is later than s, otherwise s
func (s Stage) Advance(next Stage) Stage {
	if next > s {
		return next
	}
	return s
}

var (
	codingIntentPattern = regexp.MustCompile(`(?i)\b(?:let'?s|let us|i'?ll|i will|i'?m going to|can i|ready to|start(?:ing)?|begin|jump into)\b[^.?!]{0,40}\b(?:cod(?:e|ing)|implement(?:ing|ation)?|writ(?:e|ing) (?:the |some )?(?:code|solution|function))\b`)

	complexityPattern = regexp.MustCompile(`(?i)\b(?:time|space|runtime|big[\s-]?o)\s+complexit(?:y|ies)\b|\bcomplexity\b|\bbig[\s-]?o\b|\bO\(\s*(?:1|n|log\s*n|n\s*log\s*n|n\s*\^?\s*2|n²|2\^n|n!)\s*\)`)
)

// stageForUtterance returns the stage an utterance asks for, if any
func stageForUtterance(text string) (Stage, bool) {
	switch {
	case complexityPattern.MatchString(text):
		return StageReview, true
	case codingIntentPattern.MatchString(text):
		return StageCoding, true
	default:
		return 0, false
	}
}
