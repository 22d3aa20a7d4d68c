package rpc

// Correlator hands out request ids and remembers what each outstanding id was sent for.
// Ids come from a counter starting at 1. It is not safe for concurrent use; a
// connection's event loop owns its correlator.
type Correlator[T any] struct {
	next    int64
	pending map[int64]T
}

func NewCorrelator[T any]() *Correlator[T] {
	return &Correlator[T]{
		next:    1,
		pending: make(map[int64]T),
	}
}

// Register allocates the next id for v.
func (c *Correlator[T]) Register(v T) int64 {
	id := c.next
	c.next++
	c.pending[id] = v
	return id
}

// Rearm marks id as outstanding again, for a resend of the same request.
func (c *Correlator[T]) Rearm(id int64, v T) {
	c.pending[id] = v
}

// Match consumes the entry for id.
func (c *Correlator[T]) Match(id int64) (T, error) {
	v, ok := c.pending[id]
	if !ok {
		var zero T
		return zero, &UnknownIDError{ID: id}
	}
	delete(c.pending, id)
	return v, nil
}

// Pending returns the number of outstanding calls.
func (c *Correlator[T]) Pending() int {
	return len(c.pending)
}

// Reset drops every outstanding entry. Ids keep increasing.
func (c *Correlator[T]) Reset() {
	clear(c.pending)
}
