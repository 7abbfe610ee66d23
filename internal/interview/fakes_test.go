package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/plan"
	"github.com/lexiqai/interview-engine/internal/reasoning"
	"github.com/lexiqai/interview-engine/internal/store"
)

// manualExec queues posted and spawned work so tests decide when each runs
type manualExec struct {
	mu      sync.Mutex
	posted  []func()
	spawned []func()
}

func (e *manualExec) Post(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.posted = append(e.posted, fn)
}

func (e *manualExec) Go(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spawned = append(e.spawned, fn)
}

// drain runs loop work until none is left; spawned work stays queued
func (e *manualExec) drain() {
	for {
		e.mu.Lock()
		batch := e.posted
		e.posted = nil
		e.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// complete runs every spawned call queued so far, then drains the loop
func (e *manualExec) complete() {
	e.mu.Lock()
	batch := e.spawned
	e.spawned = nil
	e.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
	e.drain()
}

// settle runs loop and spawned work until both queues are empty
func (e *manualExec) settle() {
	for {
		e.drain()
		e.mu.Lock()
		idle := len(e.spawned) == 0
		e.mu.Unlock()
		if idle {
			return
		}
		e.complete()
	}
}

func (e *manualExec) inFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spawned)
}

type fakeReasoning struct {
	mu       sync.Mutex
	requests []reasoning.Request
	reply    func(req reasoning.Request) (string, error)
}

func (r *fakeReasoning) Reply(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	n := len(r.requests)
	reply := r.reply
	r.mu.Unlock()

	if reply == nil {
		if req.SystemPrompt == SummaryPrompt {
			return reasoning.Response{Reply: "Good work.\nPreparation Percentage: 80%"}, nil
		}
		return reasoning.Response{Reply: fmt.Sprintf("Question %d?", n)}, nil
	}
	text, err := reply(req)
	if err != nil {
		return reasoning.Response{}, err
	}
	return reasoning.Response{Reply: text}, nil
}

func (r *fakeReasoning) HealthCheck(ctx context.Context) (bool, error) { return true, nil }
func (r *fakeReasoning) Close() error                                  { return nil }

func (r *fakeReasoning) all() []reasoning.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reasoning.Request(nil), r.requests...)
}

func (r *fakeReasoning) summaries() int {
	n := 0
	for _, req := range r.all() {
		if req.SystemPrompt == SummaryPrompt {
			n++
		}
	}
	return n
}

func (r *fakeReasoning) last() reasoning.Request {
	all := r.all()
	return all[len(all)-1]
}

type spoken struct {
	text  string
	rearm bool
}

// fakeSpeech records calls; like the real adapter it ignores everything
// after Shutdown, but keeps those calls in late
type fakeSpeech struct {
	mu        sync.Mutex
	spoken    []spoken
	arms      int
	shutdowns int
	late      int
}

func (s *fakeSpeech) Arm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdowns > 0 {
		s.late++
		return nil
	}
	s.arms++
	return nil
}

func (s *fakeSpeech) Speak(ctx context.Context, text string, rearm bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdowns > 0 {
		s.late++
		return
	}
	s.spoken = append(s.spoken, spoken{text: text, rearm: rearm})
}

func (s *fakeSpeech) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
}

type fakeView struct {
	mu       sync.Mutex
	replies  []string
	notices  []string
	stages   []Stage
	ticks    []int
	errors   []string
	finishes []string
}

func (v *fakeView) Reply(text string)    { v.replies = append(v.replies, text) }
func (v *fakeView) Notice(text string)   { v.notices = append(v.notices, text) }
func (v *fakeView) Stage(stage Stage)    { v.stages = append(v.stages, stage) }
func (v *fakeView) Tick(secondsLeft int) { v.ticks = append(v.ticks, secondsLeft) }
func (v *fakeView) Error(message string) { v.errors = append(v.errors, message) }

func (v *fakeView) Finish(feedbackURL string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finishes = append(v.finishes, feedbackURL)
}

func (v *fakeView) finished() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.finishes...)
}

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// countingStore wraps a store and counts outcome writes
type countingStore struct {
	store.Store
	mu        sync.Mutex
	updates   int
	updateErr error
	createErr error
}

func (s *countingStore) Create(ctx context.Context, rec *store.Record) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.Create(ctx, rec)
}

func (s *countingStore) Update(ctx context.Context, id string, outcome store.Outcome) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.Store.Update(ctx, id, outcome)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type failingLookup struct{}

func (failingLookup) Lookup(ctx context.Context, userID string) (plan.Limits, error) {
	return plan.Limits{}, errors.New("entitlement service unavailable")
}

type harness struct {
	c         *Controller
	exec      *manualExec
	reasoning *fakeReasoning
	speech    *fakeSpeech
	view      *fakeView
	store     *countingStore
	clock     *fakeClock
}

type harnessOption func(*Deps, *Options)

func withLimits(maxMinutes int) harnessOption {
	return func(d *Deps, o *Options) {
		d.Plans = plan.Static{Limits: plan.Limits{MaxMinutesPerInterview: maxMinutes}}
	}
}

func withMinutes(minutes int) harnessOption {
	return func(d *Deps, o *Options) { o.RequestedMinutes = minutes }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	mem, err := store.NewStore(store.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	h := &harness{
		exec:      &manualExec{},
		reasoning: &fakeReasoning{},
		speech:    &fakeSpeech{},
		view:      &fakeView{},
		store:     &countingStore{Store: mem},
		clock:     newFakeClock(),
	}

	deps := Deps{
		Reasoning: h.reasoning,
		Speech:    h.speech,
		Store:     h.store,
		View:      h.view,
		Executor:  h.exec,
		Logger:    zerolog.Nop(),
	}
	options := Options{
		UserID:           "user-1",
		Technology:       "Go",
		Company:          "Acme",
		Level:            "senior",
		RequestedMinutes: 30,
		FeedbackBaseURL:  "https://app.example.com/",
		Now:              h.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps, &options)
	}

	c, err := New(context.Background(), deps, options)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	h.c = c
	return h
}

// start runs the opening round-trip to completion
func (h *harness) start() {
	h.c.Start()
	h.exec.settle()
}

func (h *harness) tick() {
	h.exec.Post(h.c.tick)
	h.exec.drain()
}
