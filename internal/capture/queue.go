package capture

import (
	"sync"
	"time"
)

// Event is one item produced by the capture loop: either a recognized
// utterance or a capture fault for the consumer to log.
type Event struct {
	Text string
	Err  error
	At   time.Time
}

func (e Event) IsFault() bool { return e.Err != nil }

// Queue is an unbounded FIFO between the capture producer and the till
// consumer. Push never blocks; Drain never blocks.
type Queue struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

func (q *Queue) Push(text string) {
	q.push(Event{Text: text, At: time.Now()})
}

func (q *Queue) PushFault(err error) {
	q.push(Event{Err: err, At: time.Now()})
}

func (q *Queue) push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns every pending event in arrival order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Ready is signalled (coalesced) after a push.
func (q *Queue) Ready() <-chan struct{} {
	return q.notify
}
