// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// binder tracks the state of one FlatMap subscription: the branches still
// running (upstream plus every inner observable) and whether the output
// has terminated. 'mu' serializes every call into 'observer'.
type binder[T any] struct {
	mu          sync.Mutex
	observer    Observer[T]
	subs        *CompoundSubscription
	outstanding int
	done        bool
}

func (b *binder[T]) next(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done || b.subs.IsCancelled() {
		return
	}
	b.observer.OnNext(item)
}

// complete marks the branch owning 'branch' as finished. The last branch
// to finish completes the output.
func (b *binder[T]) complete(branch Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.outstanding--
	if b.outstanding > 0 {
		b.subs.Remove(branch)
		return
	}
	b.done = true
	b.observer.OnCompleted()
	b.subs.Cancel()
}

func (b *binder[T]) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	b.subs.Cancel()
	b.observer.OnError(err)
}

// subscribeInner starts a new branch. The lock is not held while
// subscribing as synchronous inner sources emit from within Subscribe.
func (b *binder[T]) subscribeInner(inner Observable[T]) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.outstanding++
	b.mu.Unlock()

	branch := &SerialSubscription{}
	b.subs.Add(branch)
	branch.Set(inner.Subscribe(ObserverFuncs[T]{
		Next:      b.next,
		Completed: func() { b.complete(branch) },
		Error:     b.fail,
	}))
}

// FlatMap applies a function that returns an observable of Bs to each A from
// the source and flattens the inner observables into a single stream.
//
// The output completes once the source and every inner observable spawned
// so far have completed. An error from any of them cancels everything else
// and is delivered once. A nil observable returned by 'apply' contributes
// nothing and counts as an already completed branch.
//
// The returned observable references 'src' but 'src' never references the
// result, so composing does not create ownership cycles.
func FlatMap[A, B any](src Observable[A], apply func(A) Observable[B]) Observable[B] {
	return FuncObservable[B](
		func(observer Observer[B]) Subscription {
			b := &binder[B]{
				observer:    observer,
				subs:        &CompoundSubscription{},
				outstanding: 1,
			}
			upstream := &SerialSubscription{}
			b.subs.Add(upstream)
			upstream.Set(src.Subscribe(ObserverFuncs[A]{
				Next: func(a A) {
					if b.subs.IsCancelled() {
						return
					}
					if inner := apply(a); inner != nil {
						b.subscribeInner(inner)
					}
				},
				Completed: func() { b.complete(upstream) },
				Error:     b.fail,
			}))
			return b.subs
		})
}

// Map applies a function onto an observable.
func Map[A, B any](src Observable[A], apply func(A) B) Observable[B] {
	return FlatMap(src, func(a A) Observable[B] {
		return Just(apply(a))
	})
}

// Filter keeps only the elements for which the filter function returns true.
func Filter[T any](src Observable[T], filter func(T) bool) Observable[T] {
	return FlatMap(src, func(item T) Observable[T] {
		if filter(item) {
			return Just(item)
		}
		return Empty[T]()
	})
}

// Flatten takes an observable of slices of T and returns an observable of T.
func Flatten[T any](src Observable[[]T]) Observable[T] {
	return FlatMap(src, FromSlice[T])
}

// Merge emits the items of both observables in the order they arrive.
// Calls into the observer are serialized even when 'lh' and 'rh' emit from
// different goroutines. Completes once both have completed; an error from
// either cancels the other and is delivered once.
func Merge[T any](lh, rh Observable[T]) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			var (
				mu        sync.Mutex
				completed int
				done      bool
			)
			subs := &CompoundSubscription{}

			inner := ObserverFuncs[T]{
				Next: func(item T) {
					mu.Lock()
					defer mu.Unlock()
					if done || subs.IsCancelled() {
						return
					}
					observer.OnNext(item)
				},
				Completed: func() {
					mu.Lock()
					defer mu.Unlock()
					if done {
						return
					}
					completed++
					if completed == 2 {
						done = true
						observer.OnCompleted()
					}
				},
				Error: func(err error) {
					mu.Lock()
					defer mu.Unlock()
					if done {
						return
					}
					done = true
					subs.Cancel()
					observer.OnError(err)
				},
			}

			subs.Add(lh.Subscribe(inner))
			if !subs.IsCancelled() {
				subs.Add(rh.Subscribe(inner))
			}
			return subs
		})
}

// MergeAll merges any number of observables by folding Merge over them,
// starting from Empty.
func MergeAll[T any](srcs ...Observable[T]) Observable[T] {
	merged := Empty[T]()
	for _, src := range srcs {
		merged = Merge(merged, src)
	}
	return merged
}

// Concat emits the items of 'lh' and once it completes subscribes to 'rh'.
func Concat[T any](lh, rh Observable[T]) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			subs := &CompoundSubscription{}
			subs.Add(lh.Subscribe(ObserverFuncs[T]{
				Next: observer.OnNext,
				Completed: func() {
					if !subs.IsCancelled() {
						subs.Add(rh.Subscribe(observer))
					}
				},
				Error: observer.OnError,
			}))
			return subs
		})
}

// Zip pairs the items of 'lh' and 'rh' in arrival order and emits the result
// of 'zip' for each pair. Completes once both sides have completed and all
// buffered items have been paired.
func Zip[A, B, R any](lh Observable[A], rh Observable[B], zip func(A, B) R) Observable[R] {
	return FuncObservable[R](
		func(observer Observer[R]) Subscription {
			var (
				mu          sync.Mutex
				lhItems     []A
				rhItems     []B
				lhCompleted bool
				rhCompleted bool
				done        bool
			)
			subs := &CompoundSubscription{}

			// Both must be called with 'mu' held.
			completeIfNeeded := func() {
				if done {
					return
				}
				// A completed side with nothing buffered can never be paired again.
				if (lhCompleted && len(lhItems) == 0) || (rhCompleted && len(rhItems) == 0) {
					done = true
					subs.Cancel()
					observer.OnCompleted()
				}
			}
			emitIfNeeded := func() {
				for !done && len(lhItems) > 0 && len(rhItems) > 0 {
					a, b := lhItems[0], rhItems[0]
					lhItems, rhItems = lhItems[1:], rhItems[1:]
					observer.OnNext(zip(a, b))
				}
				completeIfNeeded()
			}
			fail := func(err error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return
				}
				done = true
				subs.Cancel()
				observer.OnError(err)
			}

			subs.Add(lh.Subscribe(ObserverFuncs[A]{
				Next: func(a A) {
					mu.Lock()
					defer mu.Unlock()
					lhItems = append(lhItems, a)
					emitIfNeeded()
				},
				Completed: func() {
					mu.Lock()
					defer mu.Unlock()
					lhCompleted = true
					completeIfNeeded()
				},
				Error: fail,
			}))
			if !subs.IsCancelled() {
				subs.Add(rh.Subscribe(ObserverFuncs[B]{
					Next: func(b B) {
						mu.Lock()
						defer mu.Unlock()
						rhItems = append(rhItems, b)
						emitIfNeeded()
					},
					Completed: func() {
						mu.Lock()
						defer mu.Unlock()
						rhCompleted = true
						completeIfNeeded()
					},
					Error: fail,
				}))
			}
			return subs
		})
}

// Zip2 zips two observables into an observable of pairs.
func Zip2[V1, V2 any](src1 Observable[V1], src2 Observable[V2]) Observable[Tuple2[V1, V2]] {
	return Zip(src1, src2, func(v1 V1, v2 V2) Tuple2[V1, V2] {
		return Tuple2[V1, V2]{V1: v1, V2: v2}
	})
}

// DistinctUntilChangedBy drops items whose key equals the key of the
// previously emitted item. State is kept per subscription.
func DistinctUntilChangedBy[T any, K comparable](src Observable[T], key func(T) K) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			var (
				mu   sync.Mutex
				last K
				seen bool
			)
			return FlatMap(src, func(item T) Observable[T] {
				mu.Lock()
				defer mu.Unlock()
				k := key(item)
				if seen && k == last {
					return nil
				}
				last, seen = k, true
				return Just(item)
			}).Subscribe(observer)
		})
}

// DistinctUntilChanged drops consecutive duplicate items.
func DistinctUntilChanged[T comparable](src Observable[T]) Observable[T] {
	return DistinctUntilChangedBy(src, func(item T) T { return item })
}

// DefaultIfEmpty emits 'def' before completing if the source completed
// without emitting anything. An error from the source is turned into a
// plain completion.
func DefaultIfEmpty[T any](src Observable[T], def T) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			var emitted atomic.Bool
			return src.Subscribe(ObserverFuncs[T]{
				Next: func(item T) {
					emitted.Store(true)
					observer.OnNext(item)
				},
				Completed: func() {
					if !emitted.Load() {
						observer.OnNext(def)
					}
					observer.OnCompleted()
				},
				Error: func(error) {
					observer.OnCompleted()
				},
			})
		})
}

// ObserveOn delivers every event from the source through the scheduler.
// A delivery that runs after the subscription was cancelled is dropped.
// Events are scheduled in arrival order, so a serial scheduler preserves
// the order of the source.
func ObserveOn[T any](src Observable[T], scheduler Scheduler) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			guard := &SerialSubscription{}
			deliver := func(ev Event[T]) {
				scheduler.Schedule(func() {
					if !guard.IsCancelled() {
						ev.Dispatch(observer)
					}
				})
			}
			guard.Set(src.Subscribe(ObserverFuncs[T]{
				Next:      func(item T) { deliver(Next(item)) },
				Completed: func() { deliver(Completed[T]()) },
				Error:     func(err error) { deliver(Failed[T](err)) },
			}))
			return guard
		})
}

// SubscribeOn performs the subscription to the source on the scheduler.
func SubscribeOn[T any](src Observable[T], scheduler Scheduler) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			subs := &CompoundSubscription{}
			subs.Add(scheduler.Schedule(func() {
				subs.Add(src.Subscribe(observer))
			}))
			return subs
		})
}

// Throttle drops items that exceed the given rate. Unlike a blocking rate
// limiter this never holds up the producer.
func Throttle[T any](src Observable[T], ratePerSecond float64, burst int) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			limiter := rate.NewLimiter(rate.Limit(ratePerSecond), burst)
			return Filter(src, func(T) bool {
				return limiter.Allow()
			}).Subscribe(observer)
		})
}

// OnNext calls the supplied function on each emitted item.
func OnNext[T any](src Observable[T], f func(T)) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			return src.Subscribe(ObserverFuncs[T]{
				Next: func(item T) {
					f(item)
					observer.OnNext(item)
				},
				Completed: observer.OnCompleted,
				Error:     observer.OnError,
			})
		})
}

// Log passes events through unchanged and logs them at debug level, along
// with subscribe and cancel. Each subscription gets its own "run" id.
func Log[T any](src Observable[T], logger zerolog.Logger, name string) Observable[T] {
	return FuncObservable[T](
		func(observer Observer[T]) Subscription {
			log := logger.With().
				Str("observable", name).
				Str("run", uuid.NewString()).
				Logger()

			log.Debug().Msg("subscribe")
			sub := src.Subscribe(ObserverFuncs[T]{
				Next: func(item T) {
					log.Debug().Interface("item", item).Msg("next")
					observer.OnNext(item)
				},
				Completed: func() {
					log.Debug().Msg("completed")
					observer.OnCompleted()
				},
				Error: func(err error) {
					log.Debug().Err(err).Msg("error")
					observer.OnError(err)
				},
			})
			return NewSubscription(func() {
				log.Debug().Msg("cancel")
				sub.Cancel()
			})
		})
}
