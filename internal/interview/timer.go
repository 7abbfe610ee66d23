package interview

import (
	"sort"
	"time"
)

// tick advances the session clock. It announces each warning threshold
// once, forces wrapup near the end, checks for mutual silence and finalizes
// when time runs out.
func (c *Controller) tick() {
	if c.ended() || !c.started {
		return
	}

	now := c.now()
	left := c.session.EndAt.Sub(now)
	if left < 0 {
		left = 0
	}
	c.session.TimeLeft = int((left + time.Second - 1) / time.Second)
	c.view.Tick(c.session.TimeLeft)

	for _, w := range c.pendingWarnings(left) {
		c.warned[w] = true
		c.pushSystemNotice(warningText(int(w / time.Minute)))
	}

	if left <= c.opts.WrapupThreshold {
		c.setStage(StageWrapup)
	}

	if left == 0 {
		c.logger.Info().Msg("Time budget exhausted")
		c.finalize(ReasonAutomatic)
		return
	}

	if c.silent(now) {
		c.injectSilenceCheck()
	}
}

// pendingWarnings returns the unannounced thresholds already crossed,
// largest first
func (c *Controller) pendingWarnings(left time.Duration) []time.Duration {
	var due []time.Duration
	for _, w := range c.opts.Warnings {
		if !c.warned[w] && left <= w {
			due = append(due, w)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] > due[j] })
	return due
}

// silent reports whether both sides have been idle long enough for a
// silence check. A check already fired waits for the next reply.
func (c *Controller) silent(now time.Time) bool {
	if c.silenceFired || c.inFlight {
		return false
	}
	threshold := c.opts.SilenceThreshold
	return now.Sub(c.lastUser) >= threshold && now.Sub(c.lastAssistant) >= threshold
}
