package interview

import (
	"fmt"
	"strings"
)

// EndMarker is the token the interviewer emits to finish the interview
const EndMarker = "[END_INTERVIEW]"

// SummaryPrompt asks for the final assessment
const SummaryPrompt = `You are reviewing a completed mock technical interview. Using the full conversation, write concise feedback for the candidate covering communication, problem solving, code quality and complexity analysis. List concrete strengths and areas to improve.
End with a single line in exactly this format:
Preparation Percentage: <0-100>%
If the candidate did not say enough to judge, write:
Preparation Percentage: N/A`

const silenceCheckText = "The candidate has been silent for over two minutes. Briefly check in with them and offer a hint or ask whether they would like to continue."

// Prompt builds the system prompt for one reasoning request. It is rebuilt
// for every request so it always reflects the allowed duration.
func Prompt(technology, company, level string, allowedMinutes int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an experienced interviewer running a %d-minute mock technical interview", allowedMinutes)
	if company != "" {
		fmt.Fprintf(&b, " in the style of %s", company)
	}
	fmt.Fprintf(&b, ". The candidate is interviewing for a %s %s role.\n", levelOrDefault(level), technology)

	b.WriteString(`Run the interview in stages:
1. Introduce yourself and present one problem appropriate to the level.
2. Let the candidate ask clarifying questions.
3. When they are ready, let them code. Do not write the solution for them.
4. Review submitted code: correctness, edge cases, time and space complexity.
5. Wrap up when time is nearly over.
Keep each reply short and conversational; it will be spoken aloud. Ask one question at a time.
`)
	fmt.Fprintf(&b, "When the interview is complete, or the candidate asks to stop, say goodbye and include the token %s in your reply.", EndMarker)

	return b.String()
}

func levelOrDefault(level string) string {
	if level == "" {
		return "mid-level"
	}
	return level
}

// codeTurn is the user turn recorded for a code submission
func codeTurn(code string) string {
	return "Here is my code:\n" + code
}

// warningText is the notice spoken when a time threshold is crossed
func warningText(minutes int) string {
	if minutes == 1 {
		return "One minute remaining."
	}
	return fmt.Sprintf("%d minutes remaining.", minutes)
}

// clampText explains a reduced budget
func clampText(requested, allowed int) string {
	return fmt.Sprintf("Your plan allows interviews of up to %d minutes, so this session is %d minutes instead of %d.", allowed, allowed, requested)
}
