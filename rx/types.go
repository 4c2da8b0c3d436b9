// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import "fmt"

// Observer is the sink an Observable pushes events into.
//
// A producer calls OnNext zero or more times followed by at most one of
// OnCompleted or OnError. Nothing is delivered after the terminal event.
type Observer[T any] interface {
	OnNext(T)
	OnCompleted()
	OnError(error)
}

// ObserverFuncs adapts plain functions into an Observer. Nil functions
// are no-ops.
type ObserverFuncs[T any] struct {
	Next      func(T)
	Completed func()
	Error     func(error)
}

func (o ObserverFuncs[T]) OnNext(item T) {
	if o.Next != nil {
		o.Next(item)
	}
}

func (o ObserverFuncs[T]) OnCompleted() {
	if o.Completed != nil {
		o.Completed()
	}
}

func (o ObserverFuncs[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

type EventKind int

const (
	NextEvent EventKind = iota
	CompletedEvent
	ErrorEvent
)

func (k EventKind) String() string {
	switch k {
	case NextEvent:
		return "next"
	case CompletedEvent:
		return "completed"
	case ErrorEvent:
		return "error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a single materialized observer call.
type Event[T any] struct {
	Kind  EventKind
	Value T
	Err   error
}

func Next[T any](item T) Event[T] {
	return Event[T]{Kind: NextEvent, Value: item}
}

func Completed[T any]() Event[T] {
	return Event[T]{Kind: CompletedEvent}
}

func Failed[T any](err error) Event[T] {
	return Event[T]{Kind: ErrorEvent, Err: err}
}

// IsTerminal is true for completion and error events.
func (e Event[T]) IsTerminal() bool {
	return e.Kind != NextEvent
}

// Dispatch delivers the event to the observer.
func (e Event[T]) Dispatch(o Observer[T]) {
	switch e.Kind {
	case NextEvent:
		o.OnNext(e.Value)
	case CompletedEvent:
		o.OnCompleted()
	case ErrorEvent:
		o.OnError(e.Err)
	}
}

func (e Event[T]) String() string {
	switch e.Kind {
	case NextEvent:
		return fmt.Sprintf("next(%v)", e.Value)
	case ErrorEvent:
		return fmt.Sprintf("error(%v)", e.Err)
	}
	return e.Kind.String()
}

type Tuple2[V1, V2 any] struct {
	V1 V1
	V2 V2
}
