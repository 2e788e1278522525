package session

import (
	"errors"
	"sync"
	"time"
)

// fakeClock is the subset of clockwork's fake clock the tests drive.
type fakeClock interface {
	Clock
	Advance(d time.Duration)
}

type recorder struct {
	mu     sync.Mutex
	frames []Envelope
	closed bool
	fail   bool
}

func (r *recorder) Send(event EventName, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("send failed")
	}
	r.frames = append(r.frames, Envelope{Event: event, Data: payload})
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) events() []EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]EventName, len(r.frames))
	for i, f := range r.frames {
		names[i] = f.Event
	}
	return names
}

func (r *recorder) last() Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
