package audio

import (
	"sync"
)

// Backlog holds audio frames while the recognition connection is down.
// When full, the oldest frames are dropped so the most recent speech survives.
type Backlog struct {
	mu      sync.Mutex
	frames  [][]byte
	size    int
	max     int
	dropped int
}

// NewBacklog creates a backlog bounded to maxBytes of audio
func NewBacklog(maxBytes int) *Backlog {
	return &Backlog{max: maxBytes}
}

// Push appends a copy of frame, evicting old frames as needed
func (b *Backlog) Push(frame []byte) {
	if len(frame) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(frame) > b.max {
		frame = frame[len(frame)-b.max:]
	}
	for b.size+len(frame) > b.max && len(b.frames) > 0 {
		b.size -= len(b.frames[0])
		b.frames = b.frames[1:]
		b.dropped++
	}

	b.frames = append(b.frames, append([]byte(nil), frame...))
	b.size += len(frame)
}

// Drain returns all buffered frames in arrival order and empties the backlog
func (b *Backlog) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := b.frames
	b.frames = nil
	b.size = 0
	return frames
}

// Len returns the number of buffered bytes
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped returns how many frames were evicted since creation
func (b *Backlog) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Clear discards all buffered frames
func (b *Backlog) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = nil
	b.size = 0
}
