package speech

import (
	"context"
	"sync"
)

// TextCapture is a Capture fed by text recognised elsewhere, typically the
// browser's own speech recognition. Segments pushed while capture is stopped
// are dropped.
type TextCapture struct {
	mu         sync.Mutex
	active     bool
	continuous bool
	closed     bool
	deltas     chan string
	onChange   func(active bool)
}

// NewTextCapture creates a stopped capture. onChange, if set, is called on
// every transition so the client can show or hide its microphone state.
func NewTextCapture(onChange func(active bool)) *TextCapture {
	return &TextCapture{
		deltas:   make(chan string, 64),
		onChange: onChange,
	}
}

// Start implements Capture
func (c *TextCapture) Start(ctx context.Context, continuous bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.continuous = continuous
	c.setActive(true)
	return nil
}

// Stop implements Capture
func (c *TextCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setActive(false)
	return nil
}

func (c *TextCapture) setActive(active bool) {
	if c.closed || c.active == active {
		return
	}
	c.active = active
	if c.onChange != nil {
		c.onChange(active)
	}
}

// Deltas implements Capture
func (c *TextCapture) Deltas() <-chan string {
	return c.deltas
}

// Push delivers a recognised segment. It reports false when the segment was
// dropped because capture is stopped or the buffer is full.
func (c *TextCapture) Push(segment string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.closed {
		return false
	}
	select {
	case c.deltas <- segment:
	default:
		return false
	}
	if !c.continuous {
		c.setActive(false)
	}
	return true
}

// Active reports whether capture is listening
func (c *TextCapture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close stops capture and closes the delta stream
func (c *TextCapture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.active = false
	c.closed = true
	close(c.deltas)
}
