// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSubscriptionCancelIdempotent(t *testing.T) {
	var released int
	sub := NewSubscription(func() { released++ })

	if sub.IsCancelled() {
		t.Fatalf("new subscription should be active")
	}
	for i := 0; i < 3; i++ {
		sub.Cancel()
	}
	if !sub.IsCancelled() {
		t.Fatalf("expected subscription to be cancelled")
	}
	if released != 1 {
		t.Fatalf("expected release to run once, ran %d times", released)
	}

	empty := EmptySubscription()
	empty.Cancel()
	empty.Cancel()
	if !empty.IsCancelled() {
		t.Fatalf("expected empty subscription to be cancelled")
	}
}

func TestSubscriptionConcurrentCancel(t *testing.T) {
	var released atomic.Int32
	sub := NewSubscription(func() { released.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Cancel()
		}()
	}
	wg.Wait()

	if n := released.Load(); n != 1 {
		t.Fatalf("expected release to run once, ran %d times", n)
	}
}

func TestSubscriptionReentrantCancel(t *testing.T) {
	var (
		sub      Subscription
		released int
	)
	sub = NewSubscription(func() {
		released++
		// Must neither deadlock nor run the release again.
		sub.Cancel()
		if !sub.IsCancelled() {
			t.Errorf("expected cancelled inside release")
		}
	})
	sub.Cancel()
	if released != 1 {
		t.Fatalf("expected release to run once, ran %d times", released)
	}
}

func TestCompoundSubscription(t *testing.T) {
	counts := make([]int, 4)
	children := make([]Subscription, 4)
	for i := range children {
		i := i
		children[i] = NewSubscription(func() { counts[i]++ })
	}

	c := &CompoundSubscription{}
	c.Add(children[0])
	c.Add(children[1])
	c.Add(children[2])
	if c.Len() != 3 {
		t.Fatalf("expected 3 children, got %d", c.Len())
	}

	c.Cancel()
	c.Cancel()
	if !c.IsCancelled() {
		t.Fatalf("expected compound to be cancelled")
	}
	assertSlice(t, "after cancel", []int{1, 1, 1, 0}, counts)
	if c.Len() != 0 {
		t.Fatalf("expected no children after cancel, got %d", c.Len())
	}

	// Adding after cancellation cancels right away and does not store.
	c.Add(children[3])
	assertSlice(t, "add after cancel", []int{1, 1, 1, 1}, counts)
	if c.Len() != 0 {
		t.Fatalf("expected no children after add, got %d", c.Len())
	}
}

func TestCompoundSubscriptionAddRemove(t *testing.T) {
	c := &CompoundSubscription{}

	// Cancelled children are ignored.
	cancelled := EmptySubscription()
	cancelled.Cancel()
	c.Add(cancelled)
	if c.Len() != 0 {
		t.Fatalf("expected cancelled child to be ignored")
	}

	a := EmptySubscription()
	c.Add(a)
	c.Remove(a)
	if c.Len() != 0 {
		t.Fatalf("expected child to be removed")
	}
	c.Cancel()
	if a.IsCancelled() {
		t.Fatalf("removed child must not be cancelled by the compound")
	}

	// Remove after cancel is a no-op.
	c.Remove(a)
}

func TestSerialSubscription(t *testing.T) {
	s := &SerialSubscription{}
	first := EmptySubscription()
	second := EmptySubscription()

	s.Set(first)
	s.Set(second)
	if first.IsCancelled() {
		t.Fatalf("replacing the current child must not cancel it")
	}
	if s.Current() != second {
		t.Fatalf("expected second to be current")
	}

	s.Cancel()
	if !second.IsCancelled() {
		t.Fatalf("expected current child to be cancelled")
	}
	if first.IsCancelled() {
		t.Fatalf("replaced child must stay untouched")
	}
	if s.Current() != nil {
		t.Fatalf("expected no current child after cancel")
	}

	third := EmptySubscription()
	s.Set(third)
	if !third.IsCancelled() {
		t.Fatalf("expected child set after cancel to be cancelled")
	}
	if s.Current() != nil {
		t.Fatalf("expected child set after cancel not to be stored")
	}
}

func TestCompoundSubscriptionConcurrent(t *testing.T) {
	c := &CompoundSubscription{}
	var released atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(NewSubscription(func() { released.Add(1) }))
			if i == 32 {
				c.Cancel()
			}
		}(i)
	}
	wg.Wait()
	c.Cancel()

	// Every child was either cancelled by Cancel or cancelled on Add.
	if n := released.Load(); n != 64 {
		t.Fatalf("expected 64 releases, got %d", n)
	}
}
