// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"sync"
	"testing"
	"time"
)

//
// Test helpers
//

func assertSlice[T comparable](t *testing.T, what string, expected []T, actual []T) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("assertSlice[%s]: expected %d items, got %d (%v)", what, len(expected), len(actual), actual)
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Fatalf("assertSlice[%s]: at index %d, expected %v, got %v", what, i, expected[i], actual[i])
		}
	}
}

func assertNil(t *testing.T, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error in %s: %s", what, err)
	}
}

// recorder is an observer that records every call made to it.
type recorder[T any] struct {
	mu     sync.Mutex
	events []Event[T]
}

func (r *recorder[T]) OnNext(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Next(item))
}

func (r *recorder[T]) OnCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Completed[T]())
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Failed[T](err))
}

func (r *recorder[T]) Events() []Event[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event[T](nil), r.events...)
}

// Strings renders the recorded events, e.g. ["next(1)", "completed"].
func (r *recorder[T]) Strings() []string {
	events := r.Events()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.String())
	}
	return out
}

func (r *recorder[T]) assert(t *testing.T, what string, expected ...string) {
	t.Helper()
	assertSlice(t, what, expected, r.Strings())
}

// manualScheduler queues work until the test runs it. Delays are ignored,
// delayed work is queued in call order.
type manualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (m *manualScheduler) Schedule(work func()) Subscription {
	sub := EmptySubscription()
	m.mu.Lock()
	m.queue = append(m.queue, guarded(sub, work))
	m.mu.Unlock()
	return sub
}

func (m *manualScheduler) ScheduleAfter(work func(), delay time.Duration) Subscription {
	return m.Schedule(work)
}

func (m *manualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunOne runs the oldest queued item. Returns false if nothing was queued.
func (m *manualScheduler) RunOne() bool {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return false
	}
	work := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()
	work()
	return true
}

// RunAll runs queued work, including work queued while running, until the
// queue is empty.
func (m *manualScheduler) RunAll() {
	for m.RunOne() {
	}
}

// fromCallback creates a hot observable that is fed by the returned 'emit'
// and 'complete' functions. 'cancelled' reports whether the subscriber
// cancelled. Only sane with a single observer.
func fromCallback[T any]() (emit func(T), complete func(error), cancelled func() bool, obs Observable[T]) {
	var (
		mu       sync.Mutex
		observer Observer[T]
		sub      Subscription
	)
	emit = func(x T) {
		mu.Lock()
		o := observer
		mu.Unlock()
		if o != nil {
			o.OnNext(x)
		}
	}
	complete = func(err error) {
		mu.Lock()
		o := observer
		mu.Unlock()
		if o == nil {
			return
		}
		if err != nil {
			o.OnError(err)
		} else {
			o.OnCompleted()
		}
	}
	cancelled = func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sub != nil && sub.IsCancelled()
	}
	obs = FuncObservable[T](
		func(o Observer[T]) Subscription {
			mu.Lock()
			defer mu.Unlock()
			observer = o
			sub = NewSubscription(func() {
				mu.Lock()
				observer = nil
				mu.Unlock()
			})
			return sub
		})
	return
}
