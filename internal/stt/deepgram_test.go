package stt

import (
	"testing"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/config"
)

func testCapture() *DeepgramCapture {
	cfg := &config.Config{
		DeepgramAPIKey:             "test",
		DeepgramModel:              "nova-2",
		DeepgramLanguage:           "en",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		ReconnectMaxAttempts:       1,
		ReconnectBackoff:           1,
	}
	return NewDeepgramCapture(cfg, 48000, zerolog.Nop())
}

func result(text string, final bool) *msginterfaces.MessageResponse {
	msg := &msginterfaces.MessageResponse{Type: "Results", IsFinal: final}
	msg.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: text}}
	return msg
}

func TestDeepgramCapture_DropsWhileStopped(t *testing.T) {
	d := testCapture()
	defer d.Close()

	d.handleMessage(result("hello", true))
	select {
	case got := <-d.Deltas():
		t.Errorf("Expected nothing while stopped, got %q", got)
	default:
	}

	if err := d.SendAudio([]byte{0, 0, 1, 0}); err != nil {
		t.Errorf("Expected audio to be discarded silently, got %v", err)
	}
	if d.backlog.Len() != 0 {
		t.Error("Expected no audio buffered while stopped")
	}
}

func TestDeepgramCapture_ForwardsFinalResults(t *testing.T) {
	d := testCapture()
	defer d.Close()
	d.listening = true
	d.continuous = true

	d.handleMessage(result("interim words", false))
	d.handleMessage(result("  ", true))
	d.handleMessage(result("I would use a heap", true))
	d.handleMessage(nil)

	select {
	case got := <-d.Deltas():
		if got != "I would use a heap" {
			t.Errorf("Expected final transcript, got %q", got)
		}
	default:
		t.Fatal("Expected a transcript")
	}
	select {
	case got := <-d.Deltas():
		t.Errorf("Expected only final non-empty results, got %q", got)
	default:
	}
}

func TestDeepgramCapture_SingleShotStops(t *testing.T) {
	d := testCapture()
	defer d.Close()
	d.listening = true

	d.handleMessage(result("yes", true))
	if d.Listening() {
		t.Error("Expected non-continuous capture to stop after one segment")
	}
}

func TestDeepgramCapture_BuffersWhileDisconnected(t *testing.T) {
	d := testCapture()
	defer d.Close()
	d.listening = true

	frame := make([]byte, 96) // 48 samples at 48 kHz
	if err := d.SendAudio(frame); err != nil {
		t.Fatalf("SendAudio() failed: %v", err)
	}
	if got := d.backlog.Len(); got != 32 {
		t.Errorf("Expected 16 resampled samples (32 bytes) buffered, got %d", got)
	}

	if err := d.SendAudio([]byte{1}); err == nil {
		t.Error("Expected error for odd-length frame")
	}
}
