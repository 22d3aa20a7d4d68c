package stream

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func msg(t *testing.T, raw string) Message {
	t.Helper()
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("bad test message %s: %v", raw, err)
	}
	return Message{Raw: json.RawMessage(raw), Payload: v}
}

func TestMessage_Com(t *testing.T) {
	tests := []struct {
		raw     string
		command string
		weight  float64
		ok      bool
	}{
		{`{"com":["left",0.52],"sid":"S"}`, "left", 0.52, true},
		{`{"com":["neutral",0],"sid":"S"}`, "neutral", 0, true},
		{`{"com":["push"]}`, "", 0, false},
		{`{"com":[1,0.5]}`, "", 0, false},
		{`{"met":[1,2,3]}`, "", 0, false},
		{`[1,2]`, "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, w, ok := msg(t, tt.raw).Com()
			if c != tt.command || w != tt.weight || ok != tt.ok {
				t.Errorf("Com() = %q, %v, %v; want %q, %v, %v", c, w, ok, tt.command, tt.weight, tt.ok)
			}
		})
	}
}

func TestMessage_StreamAndSession(t *testing.T) {
	m := msg(t, `{"com":["right",0.9],"sid":"SESS1","time":1.5}`)
	if m.Stream() != "com" {
		t.Errorf("Stream() = %q", m.Stream())
	}
	if m.SessionID() != "SESS1" {
		t.Errorf("SessionID() = %q", m.SessionID())
	}
	if got := msg(t, `{"warning":{"code":142}}`).Stream(); got != "" {
		t.Errorf("Stream() of a warning = %q", got)
	}
	if got := msg(t, `"x"`).SessionID(); got != "" {
		t.Errorf("SessionID() of a string = %q", got)
	}
}

func TestForwarder_DeliversUnmodified(t *testing.T) {
	var got []Message
	f := NewForwarder(ConsumerFunc(func(m Message) { got = append(got, m) }))

	in := []Message{msg(t, `{"com":["left",0.1]}`), msg(t, `[1]`), msg(t, `null`)}
	for _, m := range in {
		if !f.Forward(m) {
			t.Fatalf("Forward() refused an open forwarder")
		}
	}
	if len(got) != len(in) {
		t.Fatalf("delivered %d; want %d", len(got), len(in))
	}
	for i := range in {
		if string(got[i].Raw) != string(in[i].Raw) {
			t.Errorf("message %d = %s; want %s", i, got[i].Raw, in[i].Raw)
		}
	}
	if f.Forwarded() != 3 {
		t.Errorf("Forwarded() = %d", f.Forwarded())
	}

	f.Close()
	if f.Forward(in[0]) {
		t.Errorf("Forward() after Close delivered")
	}
	if len(got) != 3 {
		t.Errorf("consumer called after Close")
	}
}

type closingConsumer struct {
	mu     sync.Mutex
	seen   []string
	closed bool
	err    error
	block  chan struct{}
}

func (c *closingConsumer) Consume(m Message) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.seen = append(c.seen, string(m.Raw))
	c.mu.Unlock()
}

func (c *closingConsumer) Close() error {
	c.closed = true
	return c.err
}

func TestQueue_OrderAndClose(t *testing.T) {
	cc := &closingConsumer{}
	q := NewQueue(cc, 16, nil)
	for _, raw := range []string{`1`, `2`, `3`} {
		q.Consume(msg(t, raw))
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if got := cc.seen; len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("delivered %v; want [1 2 3]", got)
	}
	if !cc.closed {
		t.Errorf("wrapped consumer not closed")
	}
	q.Consume(msg(t, `4`))
	if len(cc.seen) != 3 {
		t.Errorf("consume after close delivered")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	cc := &closingConsumer{block: make(chan struct{})}
	var dropped int
	q := NewQueue(cc, 1, nil)
	q.OnDrop = func(Message) { dropped++ }

	// first message is taken by the delivery goroutine and blocks there, the second fills
	// the buffer, the rest are dropped
	q.Consume(msg(t, `1`))
	deadline := time.Now().Add(2 * time.Second)
	for len(q.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	q.Consume(msg(t, `2`))
	q.Consume(msg(t, `3`))
	q.Consume(msg(t, `4`))

	close(cc.block)
	_ = q.Close()

	if q.Dropped() != 2 || dropped != 2 {
		t.Errorf("Dropped() = %d, OnDrop calls = %d; want 2", q.Dropped(), dropped)
	}
	if len(cc.seen) != 2 {
		t.Errorf("delivered %v; want two messages", cc.seen)
	}
}

func TestQueue_RecoversConsumerPanic(t *testing.T) {
	var calls int
	q := NewQueue(ConsumerFunc(func(m Message) {
		calls++
		if string(m.Raw) == `"boom"` {
			panic("consumer failure")
		}
	}), 4, nil)
	q.Consume(msg(t, `"boom"`))
	q.Consume(msg(t, `"ok"`))
	_ = q.Close()
	if calls != 2 {
		t.Errorf("calls = %d; want 2", calls)
	}
}

func TestFanout(t *testing.T) {
	a, b := &closingConsumer{}, &closingConsumer{err: errors.New("flush failed")}
	var plain int
	f := Fanout{a, ConsumerFunc(func(Message) { plain++ }), b}
	f.Consume(msg(t, `{"com":["left",1]}`))

	if len(a.seen) != 1 || len(b.seen) != 1 || plain != 1 {
		t.Errorf("fanout delivered a=%d b=%d plain=%d", len(a.seen), len(b.seen), plain)
	}
	err := f.Close()
	if err == nil || err.Error() != "flush failed" {
		t.Errorf("Close() = %v; want flush failed", err)
	}
	if !a.closed || !b.closed {
		t.Errorf("not every consumer closed")
	}
}
