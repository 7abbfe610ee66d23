// Package interview is the session orchestration engine: the turn-taking
// state machine, the session timer and the one-shot finalizer.
//
// A Controller owns all state of one interview. Every mutation runs on the
// Executor's serial loop; reasoning round-trips run elsewhere and post their
// results back, so no lock guards the session.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/plan"
	"github.com/lexiqai/interview-engine/internal/reasoning"
	"github.com/lexiqai/interview-engine/internal/store"
)

var (
	// ErrInvalidSession is returned by New for an unusable session request
	ErrInvalidSession = errors.New("invalid interview session")
)

// Speaker is the speech side of the engine. After Shutdown every call is
// a no-op.
type Speaker interface {
	Arm(ctx context.Context) error
	Speak(ctx context.Context, text string, rearm bool)
	Shutdown()
}

// View receives everything the candidate should see. Finish may be called
// from any goroutine; the other methods are called from the loop.
type View interface {
	Reply(text string)
	Notice(text string)
	Stage(stage Stage)
	Tick(secondsLeft int)
	Error(message string)
	Finish(feedbackURL string)
}

// Deps are the collaborators of a Controller
type Deps struct {
	Reasoning reasoning.Client
	Speech    Speaker
	Store     store.Store
	Plans     plan.EntitlementLookup
	View      View
	Executor  Executor
	Logger    zerolog.Logger
}

// Options describe one interview
type Options struct {
	UserID           string
	Technology       string
	Company          string
	Level            string
	RequestedMinutes int

	// TickInterval drives the session timer; zero leaves ticking to the caller
	TickInterval     time.Duration
	SilenceThreshold time.Duration
	WrapupThreshold  time.Duration
	Warnings         []time.Duration

	// FeedbackBaseURL is the web app root the finalizer navigates to
	FeedbackBaseURL string

	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.SilenceThreshold <= 0 {
		o.SilenceThreshold = 120 * time.Second
	}
	if o.WrapupThreshold <= 0 {
		o.WrapupThreshold = 30 * time.Second
	}
	if o.Warnings == nil {
		o.Warnings = []time.Duration{5 * time.Minute, 2 * time.Minute, time.Minute}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Session is the state of one interview attempt
type Session struct {
	ID         string
	UserID     string
	Technology string
	Company    string
	Level      string
	Budget     plan.Budget
	Stage      Stage
	EndAt      time.Time
	TimeLeft   int
	Ended      bool
}

// Reason names what triggered finalization
type Reason string

const (
	ReasonExplicit     Reason = "explicit"
	ReasonAutomatic    Reason = "automatic"
	ReasonMarker       Reason = "marker"
	ReasonDisconnected Reason = "disconnected"
)

// Controller runs one interview
type Controller struct {
	opts      Options
	reasoning reasoning.Client
	speech    Speaker
	store     store.Store
	view      View
	exec      Executor
	logger    zerolog.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Loop-owned state
	session       Session
	persisted     bool
	history       History
	started       bool
	lastUser      time.Time
	lastAssistant time.Time
	silenceFired  bool
	warned        map[time.Duration]bool
	inFlight      bool
	pending       bool
	stopTicker    func()

	finalized atomic.Bool
}

// New resolves the plan budget and records the session. A failed
// entitlement lookup never blocks the interview; a failed store write only
// skips the summary and persistence at the end.
func New(ctx context.Context, deps Deps, opts Options) (*Controller, error) {
	opts.Technology = strings.TrimSpace(opts.Technology)
	if opts.Technology == "" {
		return nil, fmt.Errorf("%w: technology is required", ErrInvalidSession)
	}
	if opts.RequestedMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidSession)
	}
	opts.applyDefaults()

	budget, _ := plan.ResolveFor(ctx, deps.Plans, opts.UserID, opts.RequestedMinutes, deps.Logger)

	id := uuid.New().String()
	persisted := false
	if deps.Store != nil {
		err := deps.Store.Create(ctx, &store.Record{
			ID:               id,
			UserID:           opts.UserID,
			Technology:       opts.Technology,
			Company:          opts.Company,
			Level:            opts.Level,
			RequestedMinutes: budget.RequestedMinutes,
			AllowedMinutes:   budget.AllowedMinutes,
		})
		if err != nil {
			deps.Logger.Error().Err(err).Str("session_id", id).Msg("Failed to record session, outcome will not be persisted")
		} else {
			persisted = true
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &Controller{
		opts:      opts,
		reasoning: deps.Reasoning,
		speech:    deps.Speech,
		store:     deps.Store,
		view:      deps.View,
		exec:      deps.Executor,
		logger:    deps.Logger.With().Str("session_id", id).Logger(),
		metrics:   observability.NewSessionMetrics(),
		now:       opts.Now,
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		session: Session{
			ID:         id,
			UserID:     opts.UserID,
			Technology: opts.Technology,
			Company:    opts.Company,
			Level:      opts.Level,
			Budget:     budget,
			Stage:      StageIntro,
		},
		persisted:  persisted,
		warned:     make(map[time.Duration]bool),
		stopTicker: func() {},
	}, nil
}

// ID returns the session ID
func (c *Controller) ID() string {
	return c.session.ID
}

// Persisted reports whether the session record was written to the store
func (c *Controller) Persisted() bool {
	return c.persisted
}

// Budget returns the resolved time budget
func (c *Controller) Budget() plan.Budget {
	return c.session.Budget
}

// Done is closed once the finalizer has reached the terminal view
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start arms the timer and asks for the opening question
func (c *Controller) Start() {
	c.exec.Post(c.start)
}

func (c *Controller) start() {
	if c.started || c.ended() {
		return
	}
	c.started = true

	now := c.now()
	allowed := time.Duration(c.session.Budget.AllowedMinutes) * time.Minute
	c.session.EndAt = now.Add(allowed)
	c.session.TimeLeft = int(allowed / time.Second)
	c.lastUser = now
	c.lastAssistant = now

	// Warnings beyond the whole budget can never be reached
	for _, w := range c.opts.Warnings {
		if w > allowed {
			c.warned[w] = true
		}
	}

	c.metrics.RecordSessionStart(c.session.Budget.WasClamped)
	c.logger.Info().
		Str("technology", c.session.Technology).
		Int("requested_minutes", c.session.Budget.RequestedMinutes).
		Int("allowed_minutes", c.session.Budget.AllowedMinutes).
		Bool("clamped", c.session.Budget.WasClamped).
		Msg("Interview started")

	c.view.Stage(c.session.Stage)
	c.view.Tick(c.session.TimeLeft)
	if c.session.Budget.WasClamped {
		c.view.Notice(clampText(c.session.Budget.RequestedMinutes, c.session.Budget.AllowedMinutes))
	}

	c.startTicker()
	c.request()
}

func (c *Controller) startTicker() {
	if c.opts.TickInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.opts.TickInterval)
	stop := make(chan struct{})
	c.stopTicker = func() {
		ticker.Stop()
		select {
		case <-stop:
		default:
			close(stop)
		}
	}

	c.exec.Go(func() {
		for {
			select {
			case <-ticker.C:
				c.exec.Post(c.tick)
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			}
		}
	})
}

// SubmitUtterance records what the candidate said and asks for a reply
func (c *Controller) SubmitUtterance(text string) {
	c.exec.Post(func() { c.submitUtterance(text) })
}

func (c *Controller) submitUtterance(text string) {
	text = strings.TrimSpace(text)
	if c.ended() || text == "" {
		return
	}

	c.history.Append(reasoning.RoleUser, text)
	c.metrics.RecordTurn(string(reasoning.RoleUser), "utterance")
	c.lastUser = c.now()
	c.silenceFired = false

	if stage, ok := stageForUtterance(text); ok {
		c.setStage(stage)
	}
	c.request()
}

// SubmitCode sends the editor contents for review
func (c *Controller) SubmitCode(code string) {
	c.exec.Post(func() { c.submitCode(code) })
}

func (c *Controller) submitCode(code string) {
	if c.ended() || strings.TrimSpace(code) == "" {
		return
	}

	c.setStage(StageReview)
	c.history.Append(reasoning.RoleUser, codeTurn(code))
	c.metrics.RecordTurn(string(reasoning.RoleUser), "code")
	c.lastUser = c.now()
	c.silenceFired = false
	c.request()
}

// PushSystemNotice speaks an assistant turn without a reasoning round-trip
func (c *Controller) PushSystemNotice(text string) {
	c.exec.Post(func() { c.pushSystemNotice(text) })
}

func (c *Controller) pushSystemNotice(text string) {
	if c.ended() {
		return
	}

	c.history.Append(reasoning.RoleAssistant, text)
	c.metrics.RecordTurn(string(reasoning.RoleAssistant), "notice")
	c.lastAssistant = c.now()
	c.view.Notice(text)
	if c.ended() {
		return
	}
	c.speech.Speak(c.ctx, text, true)
}

// InjectSilenceCheck asks the interviewer to check in with a silent candidate
func (c *Controller) InjectSilenceCheck() {
	c.exec.Post(c.injectSilenceCheck)
}

func (c *Controller) injectSilenceCheck() {
	if c.ended() {
		return
	}

	c.silenceFired = true
	c.history.Append(reasoning.RoleSystem, silenceCheckText)
	c.metrics.RecordTurn(string(reasoning.RoleSystem), "silence")
	c.metrics.RecordSilenceCheck()
	c.logger.Debug().Msg("Injecting silence check")
	c.request()
}

// request sends the history to the reasoning service. Requests are
// serialized: input arriving while one is in flight is already in the
// history and goes out with the follow-up request.
func (c *Controller) request() {
	if c.inFlight {
		c.pending = true
		return
	}
	c.inFlight = true
	c.pending = false

	req := reasoning.Request{
		History: c.history.Snapshot(),
		SystemPrompt: Prompt(
			c.session.Technology,
			c.session.Company,
			c.session.Level,
			c.session.Budget.AllowedMinutes,
		),
	}

	c.metrics.RecordReasoningStart()
	ctx := c.ctx
	c.exec.Go(func() {
		resp, err := c.reasoning.Reply(ctx, req)
		c.exec.Post(func() { c.handleReply(resp, err) })
	})
}

func (c *Controller) handleReply(resp reasoning.Response, err error) {
	c.inFlight = false
	c.metrics.RecordReasoningEnd(err == nil)
	if c.ended() {
		return
	}

	if err != nil {
		c.logger.Error().Err(err).Msg("Reasoning request failed")
		c.metrics.RecordError("reasoning_error", "reasoning")
		c.view.Error("The interviewer could not respond. Please try again.")
		if c.ended() {
			return
		}
		if c.pending {
			c.request()
			return
		}
		if err := c.speech.Arm(c.ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to re-arm capture after error")
		}
		return
	}

	end := HasEndMarker(resp.Reply)
	text := resp.Reply
	if end {
		text = StripEndMarker(text)
	}

	c.history.Append(reasoning.RoleAssistant, text)
	c.metrics.RecordTurn(string(reasoning.RoleAssistant), "reply")
	c.lastAssistant = c.now()
	c.silenceFired = false
	if c.session.Stage == StageIntro {
		c.setStage(StageClarify)
	}
	c.view.Reply(text)

	if end {
		c.logger.Info().Msg("End marker received")
		c.finalize(ReasonMarker)
		return
	}
	// End may land from another goroutine at any point
	if c.ended() {
		return
	}

	c.speech.Speak(c.ctx, text, true)
	if c.pending {
		c.request()
	}
}

func (c *Controller) setStage(next Stage) {
	stage := c.session.Stage.Advance(next)
	if stage == c.session.Stage {
		return
	}
	c.logger.Debug().Str("from", c.session.Stage.String()).Str("to", stage.String()).Msg("Stage changed")
	c.session.Stage = stage
	c.metrics.RecordStage(stage.String())
	c.view.Stage(stage)
}

func (c *Controller) ended() bool {
	return c.finalized.Load()
}
