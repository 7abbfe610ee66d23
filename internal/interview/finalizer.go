package interview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lexiqai/interview-engine/internal/reasoning"
	"github.com/lexiqai/interview-engine/internal/store"
)

const finalizeTimeout = 90 * time.Second

// End finalizes the interview at the candidate's request
func (c *Controller) End() {
	c.finalize(ReasonExplicit)
}

// Close finalizes an interview whose client went away. It is a no-op when
// the interview already ended.
func (c *Controller) Close() {
	c.finalize(ReasonDisconnected)
}

// finalize runs at most once per session whichever trigger arrives first.
// The guard is taken and speech shut down before anything asynchronous
// happens, so no later reply or notice can play or re-arm capture; the
// rest continues on the loop.
func (c *Controller) finalize(reason Reason) {
	if !c.finalized.CompareAndSwap(false, true) {
		return
	}
	c.speech.Shutdown()
	c.exec.Post(func() { c.runFinalizer(reason) })
}

func (c *Controller) runFinalizer(reason Reason) {
	c.session.Ended = true
	c.stopTicker()

	c.logger.Info().
		Str("reason", string(reason)).
		Str("stage", c.session.Stage.String()).
		Int("turns", c.history.Len()).
		Msg("Finalizing interview")

	history := c.history.Snapshot()
	feedbackURL := c.feedbackURL()
	persisted := c.persisted

	c.exec.Go(func() {
		outcome := "skipped"
		defer func() {
			c.metrics.RecordFinalization(string(reason), outcome)
			c.metrics.RecordSessionEnd()
			c.view.Finish(feedbackURL)
			c.cancel()
			close(c.done)
		}()

		if !persisted {
			return
		}
		outcome = c.summarize(history)
	})
}

// summarize requests the final assessment and persists it. Failures are
// logged; the caller always proceeds to the terminal view.
func (c *Controller) summarize(history []reasoning.Turn) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), finalizeTimeout)
	defer cancel()

	out := store.Outcome{Transcript: history}
	result := "persisted"

	resp, err := c.reasoning.Reply(ctx, reasoning.Request{History: history, SystemPrompt: SummaryPrompt})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch interview summary")
		c.metrics.RecordError("summary_error", "finalizer")
		result = "summary_failed"
	} else {
		out.Feedback = strings.TrimSpace(resp.Reply)
		out.PreparationPercentage = ParsePreparation(out.Feedback)
	}

	if err := c.store.Update(ctx, c.session.ID, out); err != nil {
		c.logger.Error().Err(err).Msg("Failed to persist interview outcome")
		c.metrics.RecordError("persist_error", "finalizer")
		return "persist_failed"
	}
	return result
}

func (c *Controller) feedbackURL() string {
	base := strings.TrimRight(c.opts.FeedbackBaseURL, "/")
	if !c.persisted {
		return base + "/interviews"
	}
	return fmt.Sprintf("%s/interviews/%s/feedback", base, c.session.ID)
}
