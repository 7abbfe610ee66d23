package gateway

import (
	"context"
	"sync"

	"github.com/lexiqai/interview-engine/internal/speech"
)

// AudioSink is a capture that accepts raw audio frames from the browser
type AudioSink interface {
	SendAudio(frame []byte) error
}

// notifyingCapture reports capture transitions to the browser
type notifyingCapture struct {
	speech.Capture
	conn *Conn

	mu     sync.Mutex
	active bool
}

func (n *notifyingCapture) Start(ctx context.Context, continuous bool) error {
	if err := n.Capture.Start(ctx, continuous); err != nil {
		return err
	}
	n.set(true)
	return nil
}

func (n *notifyingCapture) Stop() error {
	err := n.Capture.Stop()
	n.set(false)
	return err
}

func (n *notifyingCapture) set(active bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active == active {
		return
	}
	n.active = active
	n.conn.SetCapture(active)
}

func closeCapture(capture speech.Capture) {
	switch c := capture.(type) {
	case interface{ Close() error }:
		c.Close()
	case interface{ Close() }:
		c.Close()
	}
}
