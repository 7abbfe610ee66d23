package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/lexiqai/interview-engine/internal/interview"
)

// consoleView prints the interview to a terminal
type consoleView struct {
	mu          sync.Mutex
	out         io.Writer
	lastMinutes int
}

func newConsoleView(out io.Writer) *consoleView {
	return &consoleView{out: out, lastMinutes: -1}
}

func (v *consoleView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *consoleView) Reply(text string) {
	v.printf("\nInterviewer: %s\n> ", text)
}

func (v *consoleView) Notice(text string) {
	v.printf("\n[%s]\n> ", text)
}

func (v *consoleView) Stage(stage interview.Stage) {
	v.printf("\n-- %s --\n", stage)
}

// Tick prints the remaining time once per minute
func (v *consoleView) Tick(secondsLeft int) {
	minutes := (secondsLeft + 59) / 60

	v.mu.Lock()
	defer v.mu.Unlock()
	if minutes == v.lastMinutes {
		return
	}
	v.lastMinutes = minutes
	fmt.Fprintf(v.out, "\n(%d min left)\n", minutes)
}

func (v *consoleView) Error(message string) {
	v.printf("\nerror: %s\n> ", message)
}

func (v *consoleView) Finish(feedbackURL string) {
	v.printf("\nInterview finished. Feedback: %s\n", feedbackURL)
}
