// Package stream connects a frame source running at camera speed with a
// consumer that may be slower.
//
// Only the most recent frame is kept: a frame not taken before the next one
// arrives is dropped. This keeps the displayed annotations in sync with the
// camera instead of lagging behind a growing queue.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Take once the mailbox is closed and drained.
var ErrClosed = errors.New("stream: mailbox closed")

// Frame is a captured image in packed pixel form.
type Frame struct {
	Seq           uint64
	Pix           []byte
	Width, Height int
	Captured      time.Time
}

// Mailbox is a single slot buffer with overwrite semantics.
// Put is safe for concurrent use. Take must be called from a single goroutine.
type Mailbox struct {
	mu     sync.Mutex
	frame  *Frame
	seq    uint64
	drops  uint64
	closed bool

	ready chan struct{}
	done  chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Put stores the frame, replacing an unconsumed one. It assigns the frame
// sequence number and never blocks. Frames put after Close are discarded.
func (m *Mailbox) Put(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.frame != nil {
		m.drops++
	}
	m.seq++
	f.Seq = m.seq
	m.frame = f

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take blocks until a frame is available, the mailbox is closed or the
// context is done.
func (m *Mailbox) Take(ctx context.Context) (*Frame, error) {
	for {
		m.mu.Lock()
		if f := m.frame; f != nil {
			m.frame = nil
			m.mu.Unlock()
			return f, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.done:
		case <-m.ready:
		}
	}
}

// Drops returns the number of frames overwritten before being taken.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

// Close wakes up a blocked Take. A pending frame can still be taken.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}
