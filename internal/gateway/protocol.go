package gateway

import (
	"github.com/lexiqai/interview-engine/internal/interview"
)

// Client message types
const (
	TypeStart         = "start"
	TypeSpeech        = "speech"
	TypeCode          = "code"
	TypePlaybackEnded = "playback_ended"
	TypeEnd           = "end"
)

// Server message types
const (
	TypeSession     = "session"
	TypeReply       = "reply"
	TypeNotice      = "notice"
	TypeStage       = "stage"
	TypeTick        = "tick"
	TypeAudio       = "audio"
	TypeAudioCancel = "audio_cancel"
	TypeCapture     = "capture"
	TypeError       = "error"
	TypeFinished    = "finished"
)

// ClientMessage is a text frame sent by the browser. Binary frames carry
// 16-bit mono PCM for server-side recognition.
type ClientMessage struct {
	Type string `json:"type"`

	// start
	Technology string `json:"technology,omitempty"`
	Company    string `json:"company,omitempty"`
	Level      string `json:"level,omitempty"`
	Minutes    int    `json:"minutes,omitempty"`
	UserID     string `json:"userId,omitempty"`

	// speech
	Text string `json:"text,omitempty"`

	// code
	Code string `json:"code,omitempty"`

	// playback_ended
	ID string `json:"id,omitempty"`
}

// ServerMessage is a text frame sent to the browser
type ServerMessage struct {
	Type string `json:"type"`

	SessionID        string `json:"sessionId,omitempty"`
	RequestedMinutes int    `json:"requestedMinutes,omitempty"`
	AllowedMinutes   int    `json:"allowedMinutes,omitempty"`
	Clamped          bool   `json:"clamped,omitempty"`

	Text        string `json:"text,omitempty"`
	Stage       string `json:"stage,omitempty"`
	SecondsLeft *int   `json:"secondsLeft,omitempty"`

	ID    string `json:"id,omitempty"`
	Audio []byte `json:"audio,omitempty"`
	Mime  string `json:"mime,omitempty"`

	Active *bool `json:"active,omitempty"`

	Message     string `json:"message,omitempty"`
	FeedbackURL string `json:"feedbackUrl,omitempty"`
}

func sessionMessage(ctrl *interview.Controller) ServerMessage {
	budget := ctrl.Budget()
	return ServerMessage{
		Type:             TypeSession,
		SessionID:        ctrl.ID(),
		RequestedMinutes: budget.RequestedMinutes,
		AllowedMinutes:   budget.AllowedMinutes,
		Clamped:          budget.WasClamped,
	}
}
