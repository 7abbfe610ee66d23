// Package stt streams microphone audio to Deepgram and exposes the final
// transcripts as a speech.Capture.
package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/audio"
	"github.com/lexiqai/interview-engine/internal/config"
	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/resilience"
)

const (
	// Deepgram receives 16 kHz mono linear PCM regardless of the browser rate
	deepgramSampleRate = 16000

	// About ten seconds of 16 kHz audio is kept while reconnecting
	backlogBytes = deepgramSampleRate * 2 * 10
)

// messageCallbackHandler embeds the SDK default handler and overrides only
// the callbacks the capture needs
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message forwards transcription results
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error forwards connection errors
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramCapture implements speech.Capture over Deepgram's streaming API.
// Audio sent while capture is stopped is discarded; audio sent while the
// connection is being re-established is held in a backlog.
type DeepgramCapture struct {
	config     *config.Config
	inputRate  int
	logger     zerolog.Logger
	deltas     chan string
	backlog    *audio.Backlog
	breaker    *resilience.CircuitBreaker
	ctx        context.Context
	cancel     context.CancelFunc

	mu         sync.RWMutex
	client     *listenClient.WSCallback
	listening  bool
	connected  bool
	continuous bool
}

// NewDeepgramCapture creates a stopped capture. inputRate is the sample rate
// of the 16-bit mono PCM the browser sends.
func NewDeepgramCapture(cfg *config.Config, inputRate int, logger zerolog.Logger) *DeepgramCapture {
	ctx, cancel := context.WithCancel(context.Background())

	breaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})

	return &DeepgramCapture{
		config:    cfg,
		inputRate: inputRate,
		logger:    logger.With().Str("component", "deepgram").Logger(),
		deltas:    make(chan string, 100),
		backlog:   audio.NewBacklog(backlogBytes),
		breaker:   breaker,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start implements speech.Capture by opening a streaming session
func (d *DeepgramCapture) Start(ctx context.Context, continuous bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.continuous = continuous
	if d.listening {
		return nil
	}
	if err := d.connectLocked(); err != nil {
		return err
	}
	d.listening = true
	return nil
}

func (d *DeepgramCapture) connectLocked() error {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.config.DeepgramLanguage,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: false,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     deepgramSampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.logger.Error().Interface("error", errorResponse).Msg("Deepgram error")
			d.breaker.RecordResult(false)
			observability.IncrementCircuitBreakerFailures("deepgram")

			select {
			case <-d.ctx.Done():
				return nil
			default:
			}

			d.mu.Lock()
			d.connected = false
			listening := d.listening
			d.mu.Unlock()
			if listening {
				go d.reconnect()
			}
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(d.ctx, d.config.DeepgramAPIKey, nil, tOptions, callback)
	if err != nil {
		d.breaker.RecordResult(false)
		return fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		d.breaker.RecordResult(false)
		return fmt.Errorf("failed to connect to Deepgram")
	}

	d.client = client
	d.connected = true
	d.breaker.RecordResult(true)

	d.logger.Debug().
		Str("model", d.config.DeepgramModel).
		Str("language", d.config.DeepgramLanguage).
		Msg("Deepgram streaming session opened")
	return nil
}

// handleMessage forwards final transcripts while capture is listening
func (d *DeepgramCapture) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || msg.Type != "Results" || !msg.IsFinal {
		return
	}
	if len(msg.Channel.Alternatives) == 0 {
		return
	}
	text := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)
	if text == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.listening {
		return
	}
	select {
	case d.deltas <- text:
	default:
		d.logger.Warn().Msg("Transcript channel full, dropping segment")
	}
	if !d.continuous {
		d.stopLocked()
	}
}

// SendAudio forwards one frame of 16-bit mono PCM at the input rate
func (d *DeepgramCapture) SendAudio(frame []byte) error {
	d.mu.RLock()
	listening, connected, client := d.listening, d.connected, d.client
	d.mu.RUnlock()

	if !listening {
		return nil
	}

	pcm, err := audio.ResamplePCM16(frame, d.inputRate, deepgramSampleRate)
	if err != nil {
		return fmt.Errorf("invalid audio frame: %w", err)
	}
	if !connected || client == nil {
		d.backlog.Push(pcm)
		return nil
	}

	err = d.breaker.Call(func() error {
		if _, err := client.Write(pcm); err != nil {
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})
	if err != nil {
		d.backlog.Push(pcm)
		observability.IncrementCircuitBreakerFailures("deepgram")
		d.mu.Lock()
		d.connected = false
		d.mu.Unlock()
		go d.reconnect()
	}
	return err
}

// reconnect re-opens the stream and replays audio buffered meanwhile
func (d *DeepgramCapture) reconnect() {
	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     time.Duration(d.config.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	err := resilience.Reconnect(d.ctx, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.listening || d.connected {
			return nil
		}
		return d.connectLocked()
	}, reconnectConfig, d.logger)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram stream")
		return
	}

	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()
	if client == nil {
		return
	}
	for _, frame := range d.backlog.Drain() {
		if _, err := client.Write(frame); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to replay buffered audio")
			return
		}
	}
}

// Stop implements speech.Capture
func (d *DeepgramCapture) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	return nil
}

func (d *DeepgramCapture) stopLocked() {
	if !d.listening {
		return
	}
	d.listening = false
	d.backlog.Clear()
	if d.client != nil && d.connected {
		d.client.Finish()
	}
	d.client = nil
	d.connected = false
	d.logger.Debug().Msg("Deepgram streaming session closed")
}

// Deltas implements speech.Capture
func (d *DeepgramCapture) Deltas() <-chan string {
	return d.deltas
}

// Listening reports whether capture is active
func (d *DeepgramCapture) Listening() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listening
}

// Close stops capture and cancels reconnection attempts
func (d *DeepgramCapture) Close() error {
	d.cancel()
	return d.Stop()
}
