package tracker

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	defaultPushAttempts = 3
	defaultPushDelay    = 2 * time.Second
	pushTimeout         = 30 * time.Second
)

// keys naming what a push changes remotely
const resetKey = "occurrences"

func scheduleKey(id string) string {
	return "schedule:" + id
}

func occurrenceKey(id string) string {
	return "occurrence:" + id
}

type push struct {
	key         string
	description string
	send        func(ctx context.Context, remote Remote) error
}

// pushQueue delivers pushes one at a time in the order they were enqueued.
// Enqueueing never blocks. A push that runs out of attempts is parked with
// every later push for the same key until retryParked, so a key's pushes
// always reach the remote in order.
type pushQueue struct {
	attempts int
	delay    time.Duration

	mu         sync.Mutex
	pending    []push
	parked     []push
	parkedKeys map[string]int
	// unacked counts the pushes per key the remote has not accepted yet
	unacked map[string]int
	// touched holds the sequence number of each key's latest push
	touched map[string]uint64
	seq     uint64
	closed  bool
	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newPushQueue() *pushQueue {
	return &pushQueue{
		attempts:   defaultPushAttempts,
		delay:      defaultPushDelay,
		parkedKeys: make(map[string]int),
		unacked:    make(map[string]int),
		touched:    make(map[string]uint64),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}
}

func (q *pushQueue) start(remote Remote) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		for {
			p, ok := q.next()
			if !ok {
				return
			}

			if q.deliver(remote, p) {
				q.ack(p)
			} else {
				q.park(p)
			}
		}
	}()
}

func (q *pushQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *pushQueue) enqueue(p push) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		log.Printf("[Sync] dropping %s: service closed", p.description)
		return
	}

	q.seq++
	q.touched[p.key] = q.seq
	q.unacked[p.key]++

	if q.parkedKeys[p.key] > 0 {
		q.parkLocked(p)
		q.mu.Unlock()
		return
	}

	q.pending = append(q.pending, p)
	q.mu.Unlock()

	q.signal()
}

// next blocks until a deliverable push is pending or the queue is closed and
// drained
func (q *pushQueue) next() (push, bool) {
	for {
		q.mu.Lock()
		for len(q.pending) > 0 {
			p := q.pending[0]
			q.pending = q.pending[1:]

			if q.parkedKeys[p.key] > 0 {
				q.parkLocked(p)
				continue
			}

			q.mu.Unlock()

			return p, true
		}

		closed := q.closed
		q.mu.Unlock()

		if closed {
			return push{}, false
		}

		<-q.wake
	}
}

func (q *pushQueue) ack(p push) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unacked[p.key]--; q.unacked[p.key] <= 0 {
		delete(q.unacked, p.key)
	}
}

func (q *pushQueue) park(p push) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.parkLocked(p)
}

func (q *pushQueue) parkLocked(p push) {
	q.parked = append(q.parked, p)
	q.parkedKeys[p.key]++
}

// retryParked queues every parked push again ahead of the pending ones
func (q *pushQueue) retryParked() {
	q.mu.Lock()
	if q.closed || len(q.parked) == 0 {
		q.mu.Unlock()
		return
	}

	log.Printf("[Sync] retrying %d parked pushes", len(q.parked))

	q.pending = append(q.parked, q.pending...)
	q.parked = nil
	q.parkedKeys = make(map[string]int)
	q.mu.Unlock()

	q.signal()
}

// mark the current position in the push sequence
func (q *pushQueue) mark() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.seq
}

// dirty reports whether any of keys has a push the remote has not accepted
// yet or was pushed after mark. A remote read started at mark may not
// reflect such a key.
func (q *pushQueue) dirty(mark uint64, keys ...string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, key := range keys {
		if q.unacked[key] > 0 || q.touched[key] > mark {
			return true
		}
	}

	return false
}

func (q *pushQueue) deliver(remote Remote, p push) bool {
	for attempt := 1; attempt <= q.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := p.send(ctx, remote)
		cancel()

		if err == nil {
			return true
		}

		log.Printf("[Sync] %s failed (attempt %d/%d): %v", p.description, attempt, q.attempts, err)

		if attempt == q.attempts {
			break
		}

		select {
		case <-time.After(time.Duration(attempt) * q.delay):
		case <-q.stop:
			// closing skips the backoff but still makes every attempt
		}
	}

	log.Printf("[Sync] parking %s until the remote answers again", p.description)

	return false
}

// close waits for every pending push to finish. Parked pushes are reported
// and abandoned.
func (q *pushQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}

	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	q.signal()
	q.wg.Wait()

	q.mu.Lock()
	for _, p := range q.parked {
		log.Printf("[Sync] abandoning %s: service closed", p.description)
	}
	q.mu.Unlock()
}
