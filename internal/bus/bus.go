// Package bus implements the broadcast fan-out bus (C5): one producer (the
// capture loop), many subscribers, each with its own bounded queue and a
// slow-consumer eviction policy. Fan-out to subscribers runs on a bounded
// worker pool so one blocked subscriber queue can never stall the publisher.
package bus

import (
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

// State is a Subscriber's lifecycle stage.
type State int

const (
	StateOpen State = iota
	StateDraining
	StateClosed
)

const (
	// DefaultQueueDepth is the default per-subscriber bounded queue depth.
	DefaultQueueDepth = 1024
	// dropThreshold is the accumulated-drops-within-window count that
	// forces a subscriber into draining/closed.
	dropThreshold = 1024
	// dropWindow is the window the threshold above applies to.
	dropWindow = 10 * time.Second
	// fanoutWorkers bounds the pool used to push to subscriber queues
	// concurrently, so one queue's push latency doesn't serialize behind
	// another's.
	fanoutWorkers = 8
)

// ClosedEvent is the single sentinel value a closed-by-policy subscriber
// receives as its final delivery.
var ClosedEvent = dissect.Record{}

// Subscriber is a single live consumer's handle: a bounded inbound queue,
// a dropped counter, and a state cell. The zero value is not usable; use
// Bus.Subscribe.
type Subscriber struct {
	ID        uuid.UUID
	queue     chan dissect.Record
	mu        sync.Mutex
	state     State
	dropped   uint64
	dropTimes []time.Time
}

// C returns the channel of delivered records. It is closed once the
// subscriber transitions to StateClosed, after the sentinel ClosedEvent (if
// any) has been delivered.
func (s *Subscriber) C() <-chan dissect.Record { return s.queue }

// Dropped returns the subscriber's accumulated drop count.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// State returns the subscriber's current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscriber) recordDrop(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++

	cutoff := now.Add(-dropWindow)
	kept := s.dropTimes[:0]
	for _, t := range s.dropTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.dropTimes = append(kept, now)

	return len(s.dropTimes) >= dropThreshold
}

// Bus is the broadcast fan-out: one Publish feeds every open Subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	queueDepth  int
	pool        pond.Pool
}

// New constructs a Bus. queueDepth <= 0 falls back to DefaultQueueDepth.
func New(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Bus{
		subscribers: make(map[uuid.UUID]*Subscriber),
		queueDepth:  queueDepth,
		pool:        pond.NewPool(fanoutWorkers),
	}
}

// Subscribe registers a new live consumer and returns its handle.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:    uuid.New(),
		queue: make(chan dissect.Record, b.queueDepth),
		state: StateOpen,
	}
	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe releases a subscriber's handle immediately, regardless of its
// current state.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if ok {
		b.closeSubscriber(sub, false)
	}
}

// Publish fans rec out to every open subscriber concurrently via the bus's
// worker pool — this call never blocks on a subscriber's queue.
func (b *Bus) Publish(rec dissect.Record) {
	b.mu.RLock()
	targets := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub := sub
		b.pool.Submit(func() { b.deliver(sub, rec) })
	}
}

func (b *Bus) deliver(sub *Subscriber, rec dissect.Record) {
	if sub.State() != StateOpen {
		return
	}
	select {
	case sub.queue <- rec:
	default:
		if sub.recordDrop(time.Now()) {
			b.closeSubscriber(sub, true)
		}
	}
}

// closeSubscriber transitions sub through draining to closed, discarding
// any remaining queued items, delivering the sentinel ClosedEvent exactly
// once (when sendSentinel is true — a slow-consumer close, not a caller
// Unsubscribe), and closing its channel.
func (b *Bus) closeSubscriber(sub *Subscriber, sendSentinel bool) {
	sub.mu.Lock()
	if sub.state == StateClosed {
		sub.mu.Unlock()
		return
	}
	sub.state = StateDraining
	sub.mu.Unlock()

	// Drain without blocking: the queue is only ever written to by this
	// bus's own pool workers, which check state before sending.
	for {
		select {
		case <-sub.queue:
		default:
			goto drained
		}
	}
drained:
	if sendSentinel {
		select {
		case sub.queue <- ClosedEvent:
		default:
		}
	}

	sub.mu.Lock()
	sub.state = StateClosed
	sub.mu.Unlock()
	close(sub.queue)

	b.mu.Lock()
	delete(b.subscribers, sub.ID)
	b.mu.Unlock()
}

// Close shuts down every subscriber and the underlying worker pool.
func (b *Bus) Close() {
	b.mu.RLock()
	all := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		all = append(all, sub)
	}
	b.mu.RUnlock()

	for _, sub := range all {
		b.closeSubscriber(sub, false)
	}
	b.pool.StopAndWait()
}

// Count returns the number of currently registered subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
