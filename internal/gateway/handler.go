// Package gateway serves interviews to the browser over a WebSocket.
//
// The first text frame must be a start message. After that the browser
// streams recognised speech (or raw audio when server-side recognition is
// configured), code submissions and playback completions; the server
// pushes replies, notices, stage and timer updates, audio clips and the
// final feedback link.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/interview"
	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/plan"
	"github.com/lexiqai/interview-engine/internal/reasoning"
	"github.com/lexiqai/interview-engine/internal/speech"
	"github.com/lexiqai/interview-engine/internal/store"
)

const (
	startTimeout  = 30 * time.Second
	finishTimeout = 2 * time.Minute
	maxFrameBytes = 1 << 20
)

// Options configure a Handler
type Options struct {
	Reasoning reasoning.Client
	Store     store.Store
	Plans     plan.EntitlementLookup

	// Synthesizer renders replies as audio; nil delivers text only
	Synthesizer speech.Synthesizer

	// NewCapture builds the recognition source for one connection. When nil
	// the browser's own recognition feeds a speech.TextCapture.
	NewCapture func(logger zerolog.Logger) speech.Capture

	TickInterval     time.Duration
	SilenceThreshold time.Duration
	WrapupThreshold  time.Duration
	Debounce         time.Duration

	// MaxMinutes bounds the requested duration before plan limits apply
	MaxMinutes      int
	FeedbackBaseURL string

	// AllowedOrigins restricts browser origins; empty allows any
	AllowedOrigins []string

	// FinishTimeout bounds how long a closed connection waits for the
	// finalizer
	FinishTimeout time.Duration
}

// Handler upgrades requests and runs one interview per connection
type Handler struct {
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket interview handler
func NewHandler(opts Options) *Handler {
	if opts.Debounce <= 0 {
		opts.Debounce = 1500 * time.Millisecond
	}
	if opts.FinishTimeout <= 0 {
		opts.FinishTimeout = finishTimeout
	}

	h := &Handler{opts: opts}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// ServeHTTP is the entry point for interview connections
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger := observability.GetLogger()
		logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxFrameBytes)

	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}
	logger := observability.WithCorrelationID(correlationID)
	conn := newConn(ws, logger)

	start, err := readStart(ws)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected interview connection")
		conn.Error(err.Error())
		conn.close(websocket.ClosePolicyViolation, "start required")
		return
	}
	if err := h.validate(start); err != nil {
		logger.Warn().Err(err).Msg("Rejected interview request")
		conn.Error(err.Error())
		conn.close(websocket.CloseNormalClosure, "invalid request")
		return
	}

	h.run(r.Context(), conn, start, correlationID, logger)
}

func readStart(ws *websocket.Conn) (ClientMessage, error) {
	ws.SetReadDeadline(time.Now().Add(startTimeout))
	defer ws.SetReadDeadline(time.Time{})

	var msg ClientMessage
	mt, data, err := ws.ReadMessage()
	if err != nil {
		return msg, fmt.Errorf("failed to read start message: %w", err)
	}
	if mt != websocket.TextMessage {
		return msg, fmt.Errorf("expected a start message")
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("malformed start message: %w", err)
	}
	if msg.Type != TypeStart {
		return msg, fmt.Errorf("expected a start message, got %q", msg.Type)
	}
	return msg, nil
}

func (h *Handler) validate(start ClientMessage) error {
	if strings.TrimSpace(start.Technology) == "" {
		return fmt.Errorf("technology is required")
	}
	if start.Minutes <= 0 {
		return fmt.Errorf("minutes must be positive")
	}
	if h.opts.MaxMinutes > 0 && start.Minutes > h.opts.MaxMinutes {
		return fmt.Errorf("minutes must be at most %d", h.opts.MaxMinutes)
	}
	return nil
}

func (h *Handler) run(ctx context.Context, conn *Conn, start ClientMessage, correlationID string, logger zerolog.Logger) {
	loop := interview.NewLoop()
	go loop.Run()
	defer loop.Close()

	var capture speech.Capture
	if h.opts.NewCapture != nil {
		capture = h.opts.NewCapture(logger)
	} else {
		capture = speech.NewTextCapture(nil)
	}
	defer closeCapture(capture)

	adapter := speech.NewAdapter(&notifyingCapture{Capture: capture, conn: conn}, h.opts.Synthesizer, conn, logger)

	ctrl, err := interview.New(ctx, interview.Deps{
		Reasoning: h.opts.Reasoning,
		Speech:    adapter,
		Store:     h.opts.Store,
		Plans:     h.opts.Plans,
		View:      conn,
		Executor:  loop,
		Logger:    logger,
	}, interview.Options{
		UserID:           start.UserID,
		Technology:       start.Technology,
		Company:          start.Company,
		Level:            start.Level,
		RequestedMinutes: start.Minutes,
		TickInterval:     h.opts.TickInterval,
		SilenceThreshold: h.opts.SilenceThreshold,
		WrapupThreshold:  h.opts.WrapupThreshold,
		FeedbackBaseURL:  h.opts.FeedbackBaseURL,
	})
	if err != nil {
		conn.Error(err.Error())
		conn.close(websocket.CloseNormalClosure, "invalid request")
		return
	}

	logger = observability.WithSession(ctrl.ID(), correlationID)
	conn.logger = logger
	logger.Info().
		Str("technology", start.Technology).
		Int("minutes", start.Minutes).
		Msg("Interview connection established")

	conn.send(sessionMessage(ctrl))

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	debouncer := speech.NewDebouncer(h.opts.Debounce, ctrl.SubmitUtterance)
	go debouncer.Run(runCtx, capture.Deltas())

	ctrl.Start()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readLoop(conn, ctrl, capture, logger)
	}()

	select {
	case <-ctrl.Done():
		logger.Info().Msg("Interview finished, closing connection")
		conn.close(websocket.CloseNormalClosure, "interview finished")
		// Unblocks the read loop
		conn.ws.Close()
		<-readDone

	case <-readDone:
		logger.Info().Msg("Connection closed by client")
		ctrl.Close()
		select {
		case <-ctrl.Done():
		case <-time.After(h.opts.FinishTimeout):
			logger.Warn().Msg("Timed out waiting for the interview to finalize")
		}
		conn.close(websocket.CloseGoingAway, "")
	}
}

func (h *Handler) readLoop(conn *Conn, ctrl *interview.Controller, capture speech.Capture, logger zerolog.Logger) {
	text, _ := capture.(*speech.TextCapture)
	sink, _ := capture.(AudioSink)

	for {
		mt, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if mt == websocket.BinaryMessage {
			if sink == nil {
				continue
			}
			if err := sink.SendAudio(data); err != nil {
				logger.Debug().Err(err).Msg("Failed to forward audio frame")
			}
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Msg("Failed to parse client message")
			continue
		}

		switch msg.Type {
		case TypeSpeech:
			if text == nil {
				logger.Debug().Msg("Ignoring speech text, server-side recognition is active")
				continue
			}
			text.Push(msg.Text)

		case TypeCode:
			ctrl.SubmitCode(msg.Code)

		case TypePlaybackEnded:
			conn.PlaybackEnded(msg.ID)

		case TypeEnd:
			ctrl.End()

		case TypeStart:
			logger.Debug().Msg("Ignoring repeated start message")

		default:
			logger.Warn().Str("type", msg.Type).Msg("Unknown client message")
		}
	}
}
