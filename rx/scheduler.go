// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler decides where and when work runs. Cancelling the returned
// subscription before the work has started prevents it from running.
type Scheduler interface {
	// Schedule runs 'work' as soon as possible.
	Schedule(work func()) Subscription

	// ScheduleAfter runs 'work' once 'delay' has passed.
	ScheduleAfter(work func(), delay time.Duration) Subscription
}

// guarded wraps 'work' so that it does nothing once 'sub' is cancelled.
func guarded(sub Subscription, work func()) func() {
	return func() {
		if !sub.IsCancelled() {
			work()
		}
	}
}

// ImmediateScheduler runs work synchronously on the calling goroutine.
// Delayed work runs on a timer goroutine.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Schedule(work func()) Subscription {
	sub := EmptySubscription()
	work()
	return sub
}

func (ImmediateScheduler) ScheduleAfter(work func(), delay time.Duration) Subscription {
	var timer *time.Timer
	sub := NewSubscription(func() { timer.Stop() })
	timer = time.AfterFunc(delay, guarded(sub, work))
	return sub
}

var ErrLooperStopped = errors.New("looper stopped")

// Looper is a serial execution context: a single goroutine running posted
// work one item at a time in posting order.
type Looper struct {
	name  string
	log   zerolog.Logger
	queue *workQueue

	startOnce sync.Once
	done      chan struct{}
}

type LooperOption func(*Looper)

// WithLogger sets the logger used for lifecycle messages and panics.
func WithLogger(log zerolog.Logger) LooperOption {
	return func(l *Looper) { l.log = log }
}

// WithName names the looper in log messages.
func WithName(name string) LooperOption {
	return func(l *Looper) { l.name = name }
}

func NewLooper(opts ...LooperOption) *Looper {
	l := &Looper{
		name:  "looper",
		log:   zerolog.Nop(),
		queue: newWorkQueue(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("looper", l.name).Logger()
	return l
}

// Start spawns the looper goroutine. Work posted before Start is kept and
// runs once started. Calling Start more than once has no effect.
func (l *Looper) Start() {
	l.startOnce.Do(func() {
		l.log.Debug().Msg("looper started")
		go l.loop()
	})
}

// Stop stops accepting work. Work already posted still runs, after which
// the looper goroutine exits and Done is closed.
func (l *Looper) Stop() {
	l.queue.Close()
}

// Done is closed when the looper goroutine has exited.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Post queues 'work' to run on the looper goroutine.
func (l *Looper) Post(work func()) error {
	if !l.queue.Push(work) {
		return ErrLooperStopped
	}
	return nil
}

func (l *Looper) loop() {
	defer close(l.done)
	for {
		work, ok := l.queue.Pop()
		if !ok {
			l.log.Debug().Msg("looper stopped")
			return
		}
		l.run(work)
	}
}

func (l *Looper) run(work func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("panic in looper work")
			panic(r)
		}
	}()
	work()
}

// LooperScheduler schedules work onto a Looper. It holds no state of its
// own and may be shared freely.
type LooperScheduler struct {
	looper *Looper
}

func NewLooperScheduler(looper *Looper) *LooperScheduler {
	return &LooperScheduler{looper: looper}
}

func (s *LooperScheduler) Schedule(work func()) Subscription {
	sub := EmptySubscription()
	if err := s.looper.Post(guarded(sub, work)); err != nil {
		s.looper.log.Warn().Err(err).Msg("dropping scheduled work")
		sub.Cancel()
	}
	return sub
}

func (s *LooperScheduler) ScheduleAfter(work func(), delay time.Duration) Subscription {
	if delay <= 0 {
		return s.Schedule(work)
	}
	var timer *time.Timer
	sub := NewSubscription(func() { timer.Stop() })
	timer = time.AfterFunc(delay, func() {
		if sub.IsCancelled() {
			return
		}
		if err := s.looper.Post(guarded(sub, work)); err != nil {
			s.looper.log.Warn().Err(err).Msg("dropping delayed work")
		}
	})
	return sub
}
