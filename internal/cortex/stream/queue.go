package stream

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/akyaiy/cortexlink/internal/core/utils"
)

// DefaultQueueSize is used when NewQueue is given a non-positive size.
const DefaultQueueSize = 256

// Queue moves consumer work off the event loop. Messages are buffered and delivered in
// order by one goroutine; when the buffer is full new messages are dropped.
type Queue struct {
	next Consumer
	log  *slog.Logger

	ch   chan Message
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	// OnDrop, if set, is called for every dropped message.
	OnDrop func(msg Message)
}

func NewQueue(next Consumer, size int, log *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	q := &Queue{
		next: next,
		log:  log,
		ch:   make(chan Message, size),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.done)
	for msg := range q.ch {
		q.deliver(msg)
	}
}

func (q *Queue) deliver(msg Message) {
	defer utils.CatchPanicWithFallback(func(rec any) {
		q.log.Error("panic caught in consumer", slog.Any("error", rec))
	})
	q.next.Consume(msg)
}

func (q *Queue) Consume(msg Message) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- msg:
	default:
		n := q.dropped.Add(1)
		q.log.Warn("stream queue full, message dropped", slog.Uint64("dropped", n))
		if q.OnDrop != nil {
			q.OnDrop(msg)
		}
	}
}

// Dropped returns the number of messages lost to a full buffer.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close drains the buffer, waits for the delivery goroutine and closes the wrapped
// consumer if it implements Closer.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	<-q.done
	if c, ok := q.next.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Fanout delivers each message to every consumer in order.
type Fanout []Consumer

func (f Fanout) Consume(msg Message) {
	for _, c := range f {
		c.Consume(msg)
	}
}

// Close closes every consumer implementing Closer and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, c := range f {
		if cl, ok := c.(Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
