// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"sync"
	"sync/atomic"
)

type subjectEntry[T any] struct {
	observer Observer[T]
	removed  atomic.Bool
}

// Subject is both an Observer and an Observable: events pushed into it are
// multicast, in registration order, to the observers subscribed at the time
// of emission.
//
// Observers subscribing after the subject has terminated are not registered
// and receive nothing, not even the terminal event.
type Subject[T any] struct {
	// emitMu serializes OnNext, OnCompleted and OnError.
	emitMu sync.Mutex

	// mu protects the fields below. 'observers' is copied on write so that
	// an emission iterates a stable snapshot.
	mu         sync.Mutex
	observers  []*subjectEntry[T]
	terminated bool
	err        error
}

var _ Observer[int] = &Subject[int]{}
var _ Observable[int] = &Subject[int]{}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

func (s *Subject[T]) Subscribe(observer Observer[T]) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return EmptySubscription()
	}
	entry := &subjectEntry[T]{observer: observer}
	s.observers = append(s.observers[:len(s.observers):len(s.observers)], entry)
	return NewSubscription(func() { s.remove(entry) })
}

func (s *Subject[T]) remove(entry *subjectEntry[T]) {
	entry.removed.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e == entry {
			observers := make([]*subjectEntry[T], 0, len(s.observers)-1)
			observers = append(observers, s.observers[:i]...)
			s.observers = append(observers, s.observers[i+1:]...)
			return
		}
	}
}

func (s *Subject[T]) OnNext(item T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	observers := s.observers
	s.mu.Unlock()

	for _, e := range observers {
		// Skip observers cancelled while this emission was in progress.
		if !e.removed.Load() {
			e.observer.OnNext(item)
		}
	}
}

func (s *Subject[T]) OnCompleted() {
	s.terminate(Completed[T]())
}

func (s *Subject[T]) OnError(err error) {
	s.terminate(Failed[T](err))
}

func (s *Subject[T]) terminate(ev Event[T]) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	s.err = ev.Err
	observers := s.observers
	s.observers = nil
	s.mu.Unlock()

	for _, e := range observers {
		if !e.removed.Load() {
			ev.Dispatch(e.observer)
		}
	}
}

// HasObservers reports whether any observer is currently registered.
func (s *Subject[T]) HasObservers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers) > 0
}

// Err returns the error the subject terminated with, if any.
func (s *Subject[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// IsTerminated reports whether OnCompleted or OnError has been called.
func (s *Subject[T]) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}
