// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

//
// Sinks: operators that run an observable and send the output somewhere.
// These block the caller and are the bridge from push-based observables to
// code that waits for results.
//

var ErrEmpty = errors.New("observable completed without items")

// ToSlice subscribes to 'src' and collects the items until it terminates.
// If 'ctx' is cancelled first the subscription is cancelled and ctx.Err()
// is returned along with the items received so far.
func ToSlice[T any](ctx context.Context, src Observable[T]) ([]T, error) {
	var (
		mu    sync.Mutex
		items = make([]T, 0)
	)
	terminated := make(chan error, 1)
	sub := src.Subscribe(ObserverFuncs[T]{
		Next: func(item T) {
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
		},
		Completed: func() { terminated <- nil },
		Error:     func(err error) { terminated <- err },
	})

	var err error
	select {
	case err = <-terminated:
	default:
		select {
		case err = <-terminated:
		case <-ctx.Done():
			sub.Cancel()
			err = ctx.Err()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return append(make([]T, 0, len(items)), items...), err
}

// First returns the first item from 'src' and then cancels it. ErrEmpty is
// returned if 'src' completes without items.
func First[T any](ctx context.Context, src Observable[T]) (item T, err error) {
	var got atomic.Bool
	items := make(chan T, 1)
	errs := make(chan error, 1)
	sub := src.Subscribe(ObserverFuncs[T]{
		Next: func(x T) {
			if got.CompareAndSwap(false, true) {
				items <- x
			}
		},
		Completed: func() {
			if got.CompareAndSwap(false, true) {
				errs <- ErrEmpty
			}
		},
		Error: func(e error) {
			if got.CompareAndSwap(false, true) {
				errs <- e
			}
		},
	})
	defer sub.Cancel()

	select {
	case item = <-items:
	case err = <-errs:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

// ToChannels converts an observable into an item channel and error channel.
// When the source terminates both channels are closed and an error (which
// may be nil) is always sent to the error channel. Emitting blocks the
// producer until the item is received or 'ctx' is cancelled.
func ToChannels[T any](ctx context.Context, src Observable[T]) (<-chan T, <-chan error) {
	out := make(chan T, 1)
	errs := make(chan error, 1)

	go func() {
		var (
			mu     sync.Mutex
			closed bool
		)
		terminated := make(chan error, 1)
		sub := src.Subscribe(ObserverFuncs[T]{
			Next: func(item T) {
				mu.Lock()
				defer mu.Unlock()
				if closed {
					return
				}
				select {
				case out <- item:
				case <-ctx.Done():
				}
			},
			Completed: func() { terminated <- nil },
			Error:     func(err error) { terminated <- err },
		})

		var err error
		select {
		case err = <-terminated:
		case <-ctx.Done():
			sub.Cancel()
			err = ctx.Err()
		}

		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()

		errs <- err
		close(errs)
	}()
	return out, errs
}
