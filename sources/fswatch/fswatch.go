// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

// Package fswatch provides file system change notifications as observables.
package fswatch

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/joamaki/rxcore/rx"
)

// Watch returns an observable of file system events for the given files or
// directories. Every subscription creates its own watcher, which is closed
// when the subscription is cancelled. Watcher errors terminate the stream.
func Watch(paths ...string) rx.Observable[fsnotify.Event] {
	return rx.FuncObservable[fsnotify.Event](
		func(observer rx.Observer[fsnotify.Event]) rx.Subscription {
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				observer.OnError(fmt.Errorf("fsnotify: %w", err))
				return nil
			}
			for _, path := range paths {
				if err := watcher.Add(path); err != nil {
					watcher.Close()
					observer.OnError(fmt.Errorf("watch %q: %w", path, err))
					return nil
				}
			}

			done := make(chan struct{})
			var closeOnce sync.Once
			stop := func() {
				closeOnce.Do(func() {
					close(done)
					watcher.Close()
				})
			}

			go func() {
				for {
					select {
					case <-done:
						return

					case ev, ok := <-watcher.Events:
						if !ok {
							return
						}
						select {
						case <-done:
							return
						default:
							observer.OnNext(ev)
						}

					case err, ok := <-watcher.Errors:
						if !ok {
							return
						}
						select {
						case <-done:
						default:
							stop()
							observer.OnError(err)
						}
						return
					}
				}
			}()

			return rx.NewSubscription(stop)
		})
}

// Filter keeps only the events that have at least one of the operations in
// 'ops'.
func Filter(src rx.Observable[fsnotify.Event], ops fsnotify.Op) rx.Observable[fsnotify.Event] {
	return rx.Filter(src, func(ev fsnotify.Event) bool {
		return ev.Op&ops != 0
	})
}
