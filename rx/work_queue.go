// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package rx

import (
	"container/list"
	"sync"
)

// workQueue is an unbounded FIFO of work items with a blocking Pop.
type workQueue struct {
	sync.Mutex

	// nonEmptyCond is used to wait for items when popping
	nonEmptyCond *sync.Cond

	queue  *list.List
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{
		queue: list.New(),
	}
	q.nonEmptyCond = sync.NewCond(q)
	return q
}

// Close stops accepting new work. Items already queued can still be popped.
func (q *workQueue) Close() {
	q.Lock()
	q.closed = true
	q.nonEmptyCond.Broadcast()
	q.Unlock()
}

// Push appends 'work' to the queue. Returns false if the queue is closed.
func (q *workQueue) Push(work func()) bool {
	q.Lock()
	defer q.Unlock()

	if q.closed {
		return false
	}
	q.queue.PushBack(work)
	q.nonEmptyCond.Signal()
	return true
}

// Pop removes the oldest item, waiting for one if the queue is empty.
// Returns false once the queue is closed and drained.
func (q *workQueue) Pop() (work func(), ok bool) {
	q.Lock()
	defer q.Unlock()

	// If the queue is empty, wait until an item is pushed.
	for !q.closed && q.queue.Front() == nil {
		q.nonEmptyCond.Wait()
	}

	// If the queue is empty and closed we signal to consumer
	// to stop.
	if q.queue.Front() == nil {
		return nil, false
	}

	return q.queue.Remove(q.queue.Front()).(func()), true
}

func (q *workQueue) Len() int {
	q.Lock()
	defer q.Unlock()
	return q.queue.Len()
}
