// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubject(t *testing.T) {
	s := NewSubject[int]()
	r1, r2 := &recorder[int]{}, &recorder[int]{}

	s.OnNext(0) // nobody listening

	s.Subscribe(r1)
	s.OnNext(1)
	sub2 := s.Subscribe(r2)
	s.OnNext(2)
	sub2.Cancel()
	s.OnNext(3)
	s.OnCompleted()

	r1.assert(t, "r1", "next(1)", "next(2)", "next(3)", "completed")
	r2.assert(t, "r2", "next(2)")

	if !s.IsTerminated() || s.Err() != nil {
		t.Fatalf("expected completed subject")
	}
	if s.HasObservers() {
		t.Fatalf("expected no observers after termination")
	}

	// Emissions after termination are dropped.
	s.OnNext(4)
	s.OnError(errTest)
	r1.assert(t, "r1 after terminate", "next(1)", "next(2)", "next(3)", "completed")
}

func TestSubjectLateSubscriber(t *testing.T) {
	s := NewSubject[int]()
	s.OnError(errTest)

	r := &recorder[int]{}
	sub := s.Subscribe(r)
	r.assert(t, "late")
	sub.Cancel()
	if s.HasObservers() {
		t.Fatalf("expected late subscriber not to be registered")
	}
	if s.Err() != errTest {
		t.Fatalf("expected Err() to return the terminal error, got %v", s.Err())
	}
}

func TestSubjectError(t *testing.T) {
	s := NewSubject[string]()
	r := &recorder[string]{}
	s.Subscribe(r)
	s.OnNext("a")
	s.OnError(errTest)
	s.OnCompleted()
	r.assert(t, "error", "next(a)", "error(test error)")
}

func TestSubjectCancelFromCallback(t *testing.T) {
	s := NewSubject[int]()

	// 1. cancelling itself while being called
	var sub Subscription
	r1 := &recorder[int]{}
	sub = s.Subscribe(ObserverFuncs[int]{
		Next: func(x int) {
			r1.OnNext(x)
			sub.Cancel()
		},
	})

	// 2. cancelling a later observer during the same emission
	var sub3 Subscription
	s.Subscribe(ObserverFuncs[int]{
		Next: func(int) { sub3.Cancel() },
	})
	r3 := &recorder[int]{}
	sub3 = s.Subscribe(r3)

	s.OnNext(1)
	s.OnNext(2)

	r1.assert(t, "self cancel", "next(1)")
	r3.assert(t, "cancelled mid-emission")
}

func TestSubjectSubscribeFromCallback(t *testing.T) {
	s := NewSubject[int]()
	late := &recorder[int]{}
	once := sync.Once{}
	s.Subscribe(ObserverFuncs[int]{
		Next: func(int) {
			once.Do(func() { s.Subscribe(late) })
		},
	})

	// The observer added during emission of 1 only sees later items.
	s.OnNext(1)
	s.OnNext(2)
	late.assert(t, "late", "next(2)")
}

func TestSubjectConcurrentEmit(t *testing.T) {
	s := NewSubject[int]()
	obs := &serialObserver{t: t, done: make(chan struct{})}
	s.Subscribe(obs)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.OnNext(j)
			}
		}()
	}
	wg.Wait()
	s.OnCompleted()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-obs.done:
	case <-ctx.Done():
		t.Fatalf("timed out")
	}
	if c := obs.count.Load(); c != 2000 {
		t.Fatalf("expected 2000 items, got %d", c)
	}
}
