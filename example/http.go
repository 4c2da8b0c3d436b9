// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package main

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/joamaki/rxcore/rx"
	httpSource "github.com/joamaki/rxcore/sources/http"
)

type fetched struct {
	size int
	sum  [sha256.Size]byte
}

// urlReports polls 'url' and reports whenever the body changes. Reports
// beyond 'rate' per second are dropped.
func urlReports(sched rx.Scheduler, url string, interval time.Duration, rate float64, burst int) rx.Observable[string] {
	bodies := httpSource.Poll(sched, interval, httpSource.ResponseBody(httpSource.Get(url)))

	changes := rx.DistinctUntilChanged(
		rx.Map(bodies, func(body []byte) fetched {
			return fetched{size: len(body), sum: sha256.Sum256(body)}
		}))

	return rx.Throttle(
		rx.Map(changes, func(f fetched) string {
			return fmt.Sprintf("%s: %d bytes, sha256 %x", url, f.size, f.sum[:8])
		}),
		rate, burst)
}
