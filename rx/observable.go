// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

// Observable is a cold, push-based producer of T's.
//
// Every call to Subscribe is an independent run: production starts anew
// and the returned Subscription cancels only that run.
//
// Implementations of Subscribe must maintain the following invariants:
//   - events follow Next* (Completed | Error)?, nothing after the terminal event.
//   - the observer is never called concurrently with itself.
//   - side effects that outlive Subscribe (timers, goroutines, inner
//     subscriptions) check for cancellation before acting.
//
// Subscribe and emission happen synchronously on the calling goroutine
// unless an operator such as ObserveOn moves them elsewhere. Panics from
// observer callbacks are not caught and unwind through the producer.
type Observable[T any] interface {
	Subscribe(observer Observer[T]) Subscription
}

// FuncObservable wraps a function that implements Subscribe. Convenience when
// declaring a struct to implement Subscribe() is overkill.
type FuncObservable[T any] func(Observer[T]) Subscription

func (f FuncObservable[T]) Subscribe(observer Observer[T]) Subscription {
	if sub := f(observer); sub != nil {
		return sub
	}
	return EmptySubscription()
}

// Create wraps an arbitrary subscribe function. A nil subscription returned
// by 'onSubscribe' is replaced by an inert one.
func Create[T any](onSubscribe func(Observer[T]) Subscription) Observable[T] {
	return FuncObservable[T](onSubscribe)
}
