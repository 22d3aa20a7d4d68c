package stream

import (
	"sync"
)

// Consumer receives streamed messages. Consume runs on the connection's event loop, so it
// must return quickly; wrap slow consumers with NewQueue.
type Consumer interface {
	Consume(msg Message)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(msg Message)

func (f ConsumerFunc) Consume(msg Message) { f(msg) }

// Closer is implemented by consumers holding resources that must be released when the
// owner is done with them.
type Closer interface {
	Close() error
}

// Forwarder hands every message to a single registered consumer, synchronously and
// without changing it.
type Forwarder struct {
	consumer Consumer

	mu     sync.Mutex
	closed bool
	count  uint64
}

func NewForwarder(consumer Consumer) *Forwarder {
	return &Forwarder{
		consumer: consumer,
	}
}

// Forward delivers msg exactly once. It returns false once the forwarder is closed.
func (f *Forwarder) Forward(msg Message) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	f.count++
	f.mu.Unlock()

	if f.consumer != nil {
		f.consumer.Consume(msg)
	}
	return true
}

// Forwarded returns how many messages were delivered.
func (f *Forwarder) Forwarded() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Close stops delivery. The consumer itself stays open: it belongs to whoever registered
// it and may outlive the connection.
func (f *Forwarder) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
