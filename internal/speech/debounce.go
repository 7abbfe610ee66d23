package speech

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Debouncer coalesces recognition segments into one utterance once no new
// segment has arrived for the quiet period.
type Debouncer struct {
	quiet time.Duration
	emit  func(string)

	mu      sync.Mutex
	parts   []string
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer that calls emit with each complete utterance
func NewDebouncer(quiet time.Duration, emit func(string)) *Debouncer {
	return &Debouncer{quiet: quiet, emit: emit}
}

// Push adds a segment and restarts the quiet period
func (d *Debouncer) Push(segment string) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.parts = append(d.parts, segment)
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || d.stopped {
		d.mu.Unlock()
		return
	}
	text := d.take()
	d.mu.Unlock()

	if text != "" {
		d.emit(text)
	}
}

// Flush emits any pending text immediately
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	text := d.take()
	d.mu.Unlock()

	if text != "" {
		d.emit(text)
	}
}

func (d *Debouncer) take() string {
	text := strings.Join(d.parts, " ")
	d.parts = nil
	return text
}

// Stop discards pending text; later pushes are ignored
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.parts = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Run feeds segments from deltas until ctx is done or the channel closes
func (d *Debouncer) Run(ctx context.Context, deltas <-chan string) {
	defer d.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case segment, ok := <-deltas:
			if !ok {
				return
			}
			d.Push(segment)
		}
	}
}
