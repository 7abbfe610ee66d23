// Package speech coordinates speech capture and playback for one interview.
// Capture and playback are mutually exclusive: speaking stops capture, and
// capture is re-armed only when the most recent playback completes.
package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/observability"
)

// Capture is a continuous speech recognition source
type Capture interface {
	// Start begins listening. When continuous is false the capture stops
	// after the first recognised segment.
	Start(ctx context.Context, continuous bool) error
	Stop() error
	// Deltas streams recognised text segments
	Deltas() <-chan string
}

// Synthesizer renders text as playable audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays synthesized audio. onEnded must be invoked exactly once when
// playback finishes or is abandoned, and never before Play returns.
// Cancel stops whatever is playing.
type Player interface {
	Play(ctx context.Context, id string, audio []byte, onEnded func()) error
	Cancel()
}

// State of the playback side of the adapter
type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "idle"
}

// Adapter owns a Capture, an optional Synthesizer and an optional Player.
// Without a synthesizer or player every Speak completes immediately.
type Adapter struct {
	capture Capture
	synth   Synthesizer
	player  Player
	logger  zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	closed     bool
	cache      map[string][]byte
}

// NewAdapter creates an adapter in the idle state
func NewAdapter(capture Capture, synth Synthesizer, player Player, logger zerolog.Logger) *Adapter {
	return &Adapter{
		capture: capture,
		synth:   synth,
		player:  player,
		logger:  logger.With().Str("component", "speech").Logger(),
		cache:   make(map[string][]byte),
	}
}

// Arm starts continuous capture unless playback is active
func (a *Adapter) Arm(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.state == StatePlaying {
		return nil
	}
	return a.capture.Start(ctx, true)
}

// Speak cancels any prior playback, stops capture and plays text.
// When rearm is set, capture restarts once this playback completes,
// including when synthesis or playback fails.
func (a *Adapter) Speak(ctx context.Context, text string, rearm bool) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.generation++
	gen := a.generation
	a.state = StatePlaying
	if a.player != nil {
		a.player.Cancel()
	}
	if err := a.capture.Stop(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to stop capture before playback")
	}
	a.mu.Unlock()

	go a.play(ctx, gen, text, rearm)
}

func (a *Adapter) play(ctx context.Context, gen uint64, text string, rearm bool) {
	onEnded := func() { a.finished(ctx, gen, rearm) }

	audio, err := a.synthesize(ctx, text)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Speech synthesis failed, treating as finished")
		onEnded()
		return
	}
	if a.player == nil || len(audio) == 0 {
		onEnded()
		return
	}

	a.mu.Lock()
	if gen != a.generation || a.closed {
		// Superseded while synthesizing
		a.mu.Unlock()
		return
	}
	err = a.player.Play(ctx, uuid.NewString(), audio, onEnded)
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn().Err(err).Msg("Playback failed, treating as finished")
		onEnded()
	}
}

// finished is the single completion dispatcher. Only the current
// generation may change state or re-arm capture.
func (a *Adapter) finished(ctx context.Context, gen uint64, rearm bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation || a.closed {
		return
	}
	a.state = StateIdle
	if !rearm {
		return
	}
	if err := a.capture.Start(ctx, true); err != nil {
		a.logger.Error().Err(err).Msg("Failed to re-arm capture")
	}
}

func (a *Adapter) synthesize(ctx context.Context, text string) ([]byte, error) {
	if a.synth == nil {
		return nil, nil
	}

	key := NormalizeText(text)
	a.mu.Lock()
	audio, ok := a.cache[key]
	a.mu.Unlock()
	observability.RecordTTSCache(ok)
	if ok {
		return audio, nil
	}

	audio, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.cache != nil {
		a.cache[key] = audio
	}
	a.mu.Unlock()
	return audio, nil
}

// Cancel stops capture and playback immediately. Pending completions of
// earlier playbacks are ignored afterwards.
func (a *Adapter) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.state = StateIdle
	if a.player != nil {
		a.player.Cancel()
	}
	if err := a.capture.Stop(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to stop capture")
	}
}

// Shutdown cancels all activity, drops the synthesis cache and makes every
// later call a no-op.
func (a *Adapter) Shutdown() {
	a.Cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.cache = nil
}

// State returns the current playback state
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CacheSize returns the number of cached syntheses
func (a *Adapter) CacheSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}

// NormalizeText is the synthesis cache key: lower case, whitespace collapsed
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
