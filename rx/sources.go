// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"time"
)

//
// Sources, e.g. operators that create new observables.
//

// Just creates an observable that emits a single item and completes.
func Just[T any](item T) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			observer.OnNext(item)
			observer.OnCompleted()
			return EmptySubscription()
		})
}

// Empty creates an observable that completes immediately.
func Empty[T any]() Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			observer.OnCompleted()
			return EmptySubscription()
		})
}

// Never creates an observable that never emits anything and never
// completes. Mainly meant for testing and as a permanently open source.
func Never[T any]() Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			return EmptySubscription()
		})
}

// Error creates an observable that fails immediately with given error.
func Error[T any](err error) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			observer.OnError(err)
			return EmptySubscription()
		})
}

// FromSlice converts a slice into an Observable. Items are emitted
// synchronously in order, followed by completion.
func FromSlice[T any](items []T) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			for _, item := range items {
				observer.OnNext(item)
			}
			observer.OnCompleted()
			return EmptySubscription()
		})
}

// Range creates an observable that emits integers in range from...to-1.
func Range(from, to int) Observable[int] {
	return FuncObservable[int](
		func(observer Observer[int]) Subscription {
			for i := from; i < to; i++ {
				observer.OnNext(i)
			}
			observer.OnCompleted()
			return EmptySubscription()
		})
}

// Defer creates the observable lazily with 'factory' on every subscribe.
func Defer[T any](factory func() Observable[T]) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			return factory().Subscribe(observer)
		})
}

// FromChannel creates an observable from a channel. Items are received on a
// goroutine spawned per subscription and the stream completes when the
// channel is closed. The channel is consumed by the first observer.
func FromChannel[T any](in <-chan T) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			done := make(chan struct{})
			go func() {
				for {
					select {
					case <-done:
						return
					case item, ok := <-in:
						if !ok {
							observer.OnCompleted()
							return
						}
						select {
						case <-done:
							return
						default:
						}
						observer.OnNext(item)
					}
				}
			}()
			return NewSubscription(func() { close(done) })
		})
}

// Interval emits an increasing counter value every 'period' on the
// scheduler until cancelled.
func Interval(scheduler Scheduler, period time.Duration) Observable[int] {
	return FuncObservable[int](
		func(observer Observer[int]) Subscription {
			// Each tick replaces the previous, already run, tick.
			pending := &SerialSubscription{}
			var tick func(n int)
			tick = func(n int) {
				pending.Set(scheduler.ScheduleAfter(
					func() {
						observer.OnNext(n)
						tick(n + 1)
					},
					period))
			}
			tick(0)
			return pending
		})
}
