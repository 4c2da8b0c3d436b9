// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/joamaki/rxcore/rx"
	httpSource "github.com/joamaki/rxcore/sources/http"
)

func fatal(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

// GetByLine emits the response body line by line.
func GetByLine(resp rx.Observable[*http.Response]) rx.Observable[string] {
	return rx.FlatMap(resp, func(resp *http.Response) rx.Observable[string] {
		return rx.Create(func(observer rx.Observer[string]) rx.Subscription {
			defer resp.Body.Close()
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				observer.OnNext(scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				observer.OnError(err)
			} else {
				observer.OnCompleted()
			}
			return nil
		})
	})
}

func streamHandler(format string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(500)
			fmt.Fprintf(w, "error: no http.Flusher\n")
			return
		}

		w.WriteHeader(200)
		for i := 0; ; i++ {
			_, err := fmt.Fprintf(w, format+"\n", i)
			if err != nil {
				break
			}
			flusher.Flush()
			time.Sleep(time.Millisecond * 50)
		}
	}
}

func startHTTPServer() (string, *http.Server) {
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		fatal("error from Listen: %s", err)
	}

	srv := &http.Server{Addr: "127.0.0.1:0"}
	http.HandleFunc("/hex", streamHandler("0x%x"))
	http.HandleFunc("/dec", streamHandler("%d"))
	http.HandleFunc("/oct", streamHandler("0%o"))

	go func() {
		srv.Serve(listener)
		listener.Close()
	}()
	return "http://" + listener.Addr().String(), srv
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Start a local HTTP server to test against.
	url, srv := startHTTPServer()
	defer srv.Shutdown(ctx)

	looper := rx.NewLooper()
	looper.Start()
	defer looper.Stop()
	sched := rx.NewLooperScheduler(looper)

	// Merge /hex, /oct and /dec streams into one.
	lines := rx.MergeAll(
		GetByLine(httpSource.Get(url+"/hex")),
		GetByLine(httpSource.Get(url+"/oct")),
		GetByLine(httpSource.Get(url+"/dec")),

		// Also once a second insert a dividing line
		rx.Map(rx.Interval(sched, time.Second), func(_ int) string { return "-------" }),
	)

	// Print each line on the looper until the context expires.
	done := make(chan error, 1)
	sub := rx.ObserveOn(lines, sched).Subscribe(rx.ObserverFuncs[string]{
		Next:      func(line string) { fmt.Println(line) },
		Completed: func() { done <- nil },
		Error:     func(err error) { done <- err },
	})
	defer sub.Cancel()

	select {
	case err := <-done:
		if err != nil {
			fatal("error: %s", err)
		}
	case <-ctx.Done():
	}
}
