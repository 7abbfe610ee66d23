package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/interview"
	"github.com/lexiqai/interview-engine/internal/speech"
)

const writeWait = 10 * time.Second

var errConnClosed = errors.New("connection closed")

// Conn is one browser connection. It is the interview's View and the
// speech Player: audio is played by the browser, which reports back with
// playback_ended.
type Conn struct {
	ws     *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]func()
	closed  bool
}

var (
	_ interview.View = (*Conn)(nil)
	_ speech.Player  = (*Conn)(nil)
)

func newConn(ws *websocket.Conn, logger zerolog.Logger) *Conn {
	return &Conn{
		ws:      ws,
		logger:  logger,
		pending: make(map[string]func()),
	}
}

func (c *Conn) send(msg ServerMessage) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write message")
		return err
	}
	return nil
}

// Reply implements interview.View
func (c *Conn) Reply(text string) {
	c.send(ServerMessage{Type: TypeReply, Text: text})
}

// Notice implements interview.View
func (c *Conn) Notice(text string) {
	c.send(ServerMessage{Type: TypeNotice, Text: text})
}

// Stage implements interview.View
func (c *Conn) Stage(stage interview.Stage) {
	c.send(ServerMessage{Type: TypeStage, Stage: stage.String()})
}

// Tick implements interview.View
func (c *Conn) Tick(secondsLeft int) {
	c.send(ServerMessage{Type: TypeTick, SecondsLeft: &secondsLeft})
}

// Error implements interview.View
func (c *Conn) Error(message string) {
	c.send(ServerMessage{Type: TypeError, Message: message})
}

// Finish implements interview.View
func (c *Conn) Finish(feedbackURL string) {
	c.send(ServerMessage{Type: TypeFinished, FeedbackURL: feedbackURL})
}

// Play implements speech.Player by sending the clip to the browser
func (c *Conn) Play(ctx context.Context, id string, audio []byte, onEnded func()) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnClosed
	}
	c.pending[id] = onEnded
	c.mu.Unlock()

	err := c.send(ServerMessage{Type: TypeAudio, ID: id, Audio: audio, Mime: "audio/wav"})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}
	return err
}

// Cancel implements speech.Player. Clips the browser has not finished are
// abandoned and their completions run.
func (c *Conn) Cancel() {
	abandoned := c.takePending()
	if len(abandoned) == 0 {
		return
	}
	c.send(ServerMessage{Type: TypeAudioCancel})
	for _, fn := range abandoned {
		go fn()
	}
}

// PlaybackEnded runs the completion for clip id. Unknown ids are ignored.
func (c *Conn) PlaybackEnded(id string) {
	c.mu.Lock()
	fn, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if ok {
		fn()
	}
}

// SetCapture tells the browser whether the microphone is live
func (c *Conn) SetCapture(active bool) {
	c.send(ServerMessage{Type: TypeCapture, Active: &active})
}

func (c *Conn) takePending() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	fns := make([]func(), 0, len(c.pending))
	for id, fn := range c.pending {
		fns = append(fns, fn)
		delete(c.pending, id)
	}
	return fns
}

// close sends a close frame and releases pending playback
func (c *Conn) close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()

	for _, fn := range c.takePending() {
		go fn()
	}
}
