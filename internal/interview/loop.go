package interview

import (
	"sync"
)

// Executor runs controller work. Post queues fn on the single goroutine that
// owns session state; Go runs a blocking call elsewhere.
type Executor interface {
	Post(fn func())
	Go(fn func())
}

// Loop is a serial work queue. Functions posted to it run one at a time in
// posting order on the goroutine that called Run.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewLoop creates a loop; call Run to start processing
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post implements Executor. Work posted after Close is dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go implements Executor
func (l *Loop) Go(fn func()) {
	go fn()
}

// Run processes posted work until Close is called
func (l *Loop) Run() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if closed {
			return
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-l.wake:
		case <-l.done:
		}
	}
}

// Close stops the loop after the work already queued has run
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}
