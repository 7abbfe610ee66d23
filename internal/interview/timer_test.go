package interview

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lexiqai/interview-engine/internal/reasoning"
)

func countRole(turns []reasoning.Turn, role reasoning.Role) int {
	n := 0
	for _, turn := range turns {
		if turn.Role == role {
			n++
		}
	}
	return n
}

func TestTick_WarningsFireOnce(t *testing.T) {
	h := newHarness(t, withMinutes(10))
	h.start()

	for i := 0; i < 10*60; i++ {
		h.clock.Advance(time.Second)
		h.tick()
		h.exec.settle()
	}

	want := []string{"5 minutes remaining.", "2 minutes remaining.", "One minute remaining."}
	if strings.Join(h.view.notices, "|") != strings.Join(want, "|") {
		t.Errorf("Expected notices %v, got %v", want, h.view.notices)
	}
	if len(h.view.finished()) != 1 {
		t.Errorf("Expected the session to finish once, got %d", len(h.view.finished()))
	}
	if got := h.view.ticks[len(h.view.ticks)-1]; got != 0 {
		t.Errorf("Expected final tick of 0, got %d", got)
	}
}

func TestTick_SeveralThresholdsInOneTick(t *testing.T) {
	h := newHarness(t, withMinutes(10))
	h.start()

	h.clock.Advance(9*time.Minute + 30*time.Second)
	h.tick()

	want := []string{"5 minutes remaining.", "2 minutes remaining.", "One minute remaining."}
	if strings.Join(h.view.notices, "|") != strings.Join(want, "|") {
		t.Errorf("Expected notices largest first %v, got %v", want, h.view.notices)
	}
	if h.c.session.Stage != StageWrapup {
		t.Errorf("Expected stage wrapup, got %s", h.c.session.Stage)
	}

	h.clock.Advance(time.Second)
	h.tick()
	if len(h.view.notices) != 3 {
		t.Error("Expected no repeated warnings")
	}
}

func TestTick_ShortBudgetWarnings(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    []string
	}{
		{"five minutes", 5, []string{"5 minutes remaining.", "2 minutes remaining.", "One minute remaining."}},
		{"three minutes", 3, []string{"2 minutes remaining.", "One minute remaining."}},
		{"two minutes", 2, []string{"2 minutes remaining.", "One minute remaining."}},
		{"one minute", 1, []string{"One minute remaining."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withMinutes(tt.minutes))
			h.start()

			for i := 0; i < tt.minutes*60; i++ {
				h.clock.Advance(time.Second)
				h.tick()
			}

			if strings.Join(h.view.notices, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Expected notices %v, got %v", tt.want, h.view.notices)
			}
		})
	}
}

func TestTick_RoundsSecondsUp(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.clock.Advance(500 * time.Millisecond)
	h.tick()

	if got := h.view.ticks[len(h.view.ticks)-1]; got != 30*60 {
		t.Errorf("Expected 1800 seconds left, got %d", got)
	}
}

func TestTick_BeforeStart(t *testing.T) {
	h := newHarness(t)
	h.tick()

	if len(h.view.ticks) != 0 {
		t.Error("Expected no ticks before the interview starts")
	}
}

func TestTick_WrapupIsSticky(t *testing.T) {
	h := newHarness(t, withMinutes(10))
	h.start()

	h.clock.Advance(9*time.Minute + 40*time.Second)
	h.tick()
	h.exec.settle()

	h.c.SubmitUtterance("Let's start coding the helper")
	h.c.SubmitCode("return nil")
	h.c.SubmitUtterance("The time complexity is O(n)")
	h.exec.settle()

	if h.c.session.Stage != StageWrapup {
		t.Errorf("Expected stage to stay wrapup, got %s", h.c.session.Stage)
	}
	if last := h.view.stages[len(h.view.stages)-1]; last != StageWrapup {
		t.Errorf("Expected last shown stage wrapup, got %s", last)
	}
}

func TestTick_TimeUpFinalizes(t *testing.T) {
	h := newHarness(t, withMinutes(5))
	h.start()

	h.clock.Advance(5 * time.Minute)
	h.tick()

	if !h.c.finalized.Load() {
		t.Fatal("Expected finalizer to start when time runs out")
	}
	if h.speech.shutdowns != 1 {
		t.Errorf("Expected speech shut down, got %d", h.speech.shutdowns)
	}

	h.exec.settle()

	if h.reasoning.summaries() != 1 {
		t.Errorf("Expected 1 summary request, got %d", h.reasoning.summaries())
	}
	if len(h.view.finished()) != 1 {
		t.Error("Expected terminal view")
	}

	h.clock.Advance(time.Minute)
	h.tick()
	h.exec.settle()
	if h.reasoning.summaries() != 1 {
		t.Error("Expected later ticks to do nothing")
	}
}

func TestTick_SilenceCheck(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.clock.Advance(119 * time.Second)
	h.tick()
	h.exec.settle()
	if len(h.reasoning.all()) != 1 {
		t.Fatal("Expected no silence check before the threshold")
	}

	h.clock.Advance(time.Second)
	h.tick()
	h.exec.settle()

	reqs := h.reasoning.all()
	if len(reqs) != 2 {
		t.Fatalf("Expected a silence check request, got %d requests", len(reqs))
	}
	last := reqs[1].History[len(reqs[1].History)-1]
	if last.Role != reasoning.RoleSystem || last.Content != silenceCheckText {
		t.Errorf("Expected system silence turn, got %+v", last)
	}

	// The reply resets the assistant clock, so the next check waits a full threshold
	h.clock.Advance(60 * time.Second)
	h.tick()
	h.exec.settle()
	if len(h.reasoning.all()) != 2 {
		t.Error("Expected no second check within the threshold")
	}

	h.clock.Advance(60 * time.Second)
	h.tick()
	h.exec.settle()
	if len(h.reasoning.all()) != 3 {
		t.Errorf("Expected a second check after another idle period, got %d requests", len(h.reasoning.all()))
	}
}

func TestTick_SilenceCheckWaitsForReply(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.clock.Advance(2 * time.Minute)
	h.tick()
	if h.exec.inFlight() != 1 {
		t.Fatalf("Expected silence check in flight, got %d", h.exec.inFlight())
	}

	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Minute)
		h.tick()
	}
	if got := countRole(h.c.history.Snapshot(), reasoning.RoleSystem); got != 1 {
		t.Errorf("Expected one silence check while waiting, got %d", got)
	}

	// A failed reply leaves the check marked as fired
	h.reasoning.reply = func(reasoning.Request) (string, error) { return "", errors.New("timeout") }
	h.exec.settle()
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Minute)
		h.tick()
		h.exec.settle()
	}
	if got := countRole(h.c.history.Snapshot(), reasoning.RoleSystem); got != 1 {
		t.Errorf("Expected no repeat check without a reply, got %d", got)
	}
}

func TestTick_CandidateSpeechDefersSilenceCheck(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.clock.Advance(100 * time.Second)
	h.c.SubmitUtterance("Let me think about this")
	h.exec.settle()

	h.clock.Advance(100 * time.Second)
	h.tick()
	h.exec.settle()

	if got := countRole(h.c.history.Snapshot(), reasoning.RoleSystem); got != 0 {
		t.Errorf("Expected no silence check after recent speech, got %d", got)
	}
}

func TestTick_UserActivityReenablesSilenceCheck(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.reasoning.reply = func(reasoning.Request) (string, error) { return "", errors.New("timeout") }
	h.clock.Advance(2 * time.Minute)
	h.tick()
	h.exec.settle()
	if got := countRole(h.c.history.Snapshot(), reasoning.RoleSystem); got != 1 {
		t.Fatalf("Expected one silence check, got %d", got)
	}

	// The candidate speaks but the round-trip fails again
	h.c.SubmitUtterance("Are you still there?")
	h.exec.settle()

	h.clock.Advance(2 * time.Minute)
	h.tick()
	h.exec.settle()
	if got := countRole(h.c.history.Snapshot(), reasoning.RoleSystem); got != 2 {
		t.Errorf("Expected a second silence check after candidate activity, got %d", got)
	}
}
