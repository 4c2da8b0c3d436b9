// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joamaki/rxcore/rx"
)

type options struct {
	client   *http.Client
	mutators []func(*http.Request)
}

type Option func(*options)

// WithClient uses 'client' instead of http.DefaultClient.
func WithClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

func WithBasicAuth(username, password string) Option {
	return func(o *options) {
		o.mutators = append(o.mutators, func(req *http.Request) {
			req.SetBasicAuth(username, password)
		})
	}
}

// WithBody sets the request body. The body is re-read on every
// subscription.
func WithBody(body []byte) Option {
	return func(o *options) {
		o.mutators = append(o.mutators, func(req *http.Request) {
			req.ContentLength = int64(len(body))
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
		})
	}
}

func WithHeader(key, value string) Option {
	return func(o *options) {
		o.mutators = append(o.mutators, func(req *http.Request) {
			req.Header.Add(key, value)
		})
	}
}

// StatusError is returned by ResponseBody for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Request returns an observable that performs the request on each
// subscription and emits the response. The request runs on its own
// goroutine and cancelling the subscription cancels it. The observer
// must close the response body.
func Request(method, url string, opts ...Option) rx.Observable[*http.Response] {
	o := options{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	return rx.FuncObservable[*http.Response](
		func(observer rx.Observer[*http.Response]) rx.Subscription {
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				req, err := http.NewRequestWithContext(ctx, method, url, nil)
				if err != nil {
					observer.OnError(err)
					return
				}
				for _, mut := range o.mutators {
					mut(req)
				}

				resp, err := o.client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						observer.OnError(err)
					}
					return
				}
				if ctx.Err() != nil {
					resp.Body.Close()
					return
				}
				observer.OnNext(resp)
				observer.OnCompleted()
			}()
			return rx.NewSubscription(cancel)
		})
}

func Get(url string, opts ...Option) rx.Observable[*http.Response] {
	return Request(http.MethodGet, url, opts...)
}

func Post(url string, body []byte, opts ...Option) rx.Observable[*http.Response] {
	return Request(http.MethodPost, url, append([]Option{WithBody(body)}, opts...)...)
}

// ResponseBody reads and closes the body of each response. Responses with
// a non-2xx status become a *StatusError.
func ResponseBody(in rx.Observable[*http.Response]) rx.Observable[[]byte] {
	return rx.FlatMap(in, func(resp *http.Response) rx.Observable[[]byte] {
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return rx.Error[[]byte](err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return rx.Error[[]byte](&StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       body,
			})
		}
		return rx.Just(body)
	})
}

// Poll subscribes to 'src' right away and then again 'interval' after each
// run completes. Items from every run are forwarded. An error from a run is
// forwarded and stops polling. Poll never completes on its own.
func Poll[T any](scheduler rx.Scheduler, interval time.Duration, src rx.Observable[T]) rx.Observable[T] {
	return rx.FuncObservable[T](
		func(observer rx.Observer[T]) rx.Subscription {
			subs := &rx.CompoundSubscription{}
			run := &rx.SerialSubscription{}
			timer := &rx.SerialSubscription{}
			subs.Add(run)
			subs.Add(timer)

			var poll func()
			poll = func() {
				run.Set(src.Subscribe(rx.ObserverFuncs[T]{
					Next: func(item T) {
						if !subs.IsCancelled() {
							observer.OnNext(item)
						}
					},
					Completed: func() {
						timer.Set(scheduler.ScheduleAfter(poll, interval))
					},
					Error: func(err error) {
						if !subs.IsCancelled() {
							subs.Cancel()
							observer.OnError(err)
						}
					},
				}))
			}
			subs.Add(scheduler.Schedule(poll))
			return subs
		})
}
