package resource

import (
	"context"
	"sync"
)

// Stream is an observable sequence of States with replay of the latest value.
// Observers are called synchronously, one state at a time, in publication order.
// An observer must not publish to the stream it is observing.
type Stream[P any, R any] struct {
	deliver sync.Mutex // serializes delivery to observers

	mu        sync.Mutex
	latest    State[P, R]
	observers []observer[P, R]
	nextID    uint64
	changed   chan struct{}
}

type observer[P any, R any] struct {
	id uint64
	fn func(State[P, R])
}

// NewStream returns a stream whose latest value is initial.
func NewStream[P any, R any](initial State[P, R]) *Stream[P, R] {
	return &Stream[P, R]{
		latest:  initial,
		changed: make(chan struct{}),
	}
}

// Latest returns the most recently published state.
func (s *Stream[P, R]) Latest() State[P, R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Publish records st as the latest state and delivers it to every observer.
func (s *Stream[P, R]) Publish(st State[P, R]) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.latest = st
	observers := append([]observer[P, R](nil), s.observers...)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(st)
	}
}

// Observe delivers the latest state to fn immediately, then every subsequent state.
// The returned function stops delivery; it is safe to call more than once.
func (s *Stream[P, R]) Observe(fn func(State[P, R])) (cancel func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[P, R]{id: id, fn: fn})
	latest := s.latest
	s.mu.Unlock()

	fn(latest)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Stream[P, R]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// Wait blocks until the latest state is terminal or ctx is done.
func (s *Stream[P, R]) Wait(ctx context.Context) (State[P, R], error) {
	for {
		s.mu.Lock()
		st, changed := s.latest, s.changed
		s.mu.Unlock()

		if st.IsTerminal() {
			return st, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}
