// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import "sync"

// Subscription is the cancellation handle for a single subscribe run.
//
// Cancel is idempotent. Implementations are used as map keys by
// CompoundSubscription and must therefore be comparable (pointer types).
type Subscription interface {
	Cancel()
	IsCancelled() bool
}

type actionSubscription struct {
	mu        sync.Mutex
	release   func()
	cancelled bool
}

// NewSubscription returns an active subscription that runs 'release'
// exactly once on the first Cancel.
func NewSubscription(release func()) Subscription {
	return &actionSubscription{release: release}
}

// EmptySubscription returns a subscription with no release action.
func EmptySubscription() Subscription {
	return &actionSubscription{}
}

func (s *actionSubscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	release := s.release
	s.release = nil
	s.mu.Unlock()

	// The flag is already set, so concurrent and re-entrant calls return
	// without running the release again.
	if release != nil {
		release()
	}
}

func (s *actionSubscription) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// CompoundSubscription cancels a dynamic set of child subscriptions
// together. The zero value is ready to use.
type CompoundSubscription struct {
	mu        sync.Mutex
	children  map[Subscription]struct{}
	cancelled bool
}

// Add stores 'child'. Already cancelled children are ignored, and a child
// added after the compound was cancelled is cancelled immediately.
func (c *CompoundSubscription) Add(child Subscription) {
	if child == nil || child.IsCancelled() {
		return
	}
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		child.Cancel()
		return
	}
	if c.children == nil {
		c.children = make(map[Subscription]struct{})
	}
	c.children[child] = struct{}{}
	c.mu.Unlock()
}

// Remove drops 'child' without cancelling it.
func (c *CompoundSubscription) Remove(child Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return
	}
	delete(c.children, child)
}

func (c *CompoundSubscription) Cancel() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	children := c.children
	c.children = nil
	c.mu.Unlock()

	for child := range children {
		child.Cancel()
	}
}

func (c *CompoundSubscription) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Len is the number of children currently held.
func (c *CompoundSubscription) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.children)
}

// SerialSubscription holds at most one current child. The zero value is
// ready to use.
//
// Set replaces the current child without cancelling the previous one;
// callers that want the old child cancelled must do so themselves.
type SerialSubscription struct {
	mu        sync.Mutex
	current   Subscription
	cancelled bool
}

// Set makes 'child' the current subscription, or cancels it right away if
// the serial subscription was already cancelled.
func (s *SerialSubscription) Set(child Subscription) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		if child != nil {
			child.Cancel()
		}
		return
	}
	s.current = child
	s.mu.Unlock()
}

// Current returns the current child, nil if none or cancelled.
func (s *SerialSubscription) Current() Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SerialSubscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		current.Cancel()
	}
}

func (s *SerialSubscription) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
