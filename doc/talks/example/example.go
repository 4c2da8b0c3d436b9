package main

import (
	"fmt"

	"github.com/joamaki/rxcore/rx"
)

type singleIntegerObservable int

func (num singleIntegerObservable) Subscribe(observer rx.Observer[int]) rx.Subscription {
	observer.OnNext(int(num))
	observer.OnCompleted()
	return rx.EmptySubscription()
}

func main() {
	var ten rx.Observable[int] = singleIntegerObservable(10)

	// The 'Map' operator takes an observable and a function and applies
	// the function to each element.
	twenty := rx.Map(
		ten,
		func(x int) int { return x * 2 },
	)

	twenty.Subscribe(rx.ObserverFuncs[int]{
		Next: func(x int) { fmt.Printf("%d\n", x) },
	})
}
