package session

import (
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/stream"
)

// Event is an input to the Sequencer.
type Event interface {
	event()
}

// Opened is fired once the transport is connected.
type Opened struct{}

// MessageReceived carries one inbound frame.
type MessageReceived struct {
	Data []byte
}

// Closed is fired when the transport goes away. Reason is nil for a local close.
type Closed struct {
	Reason error
}

func (Opened) event()          {}
func (MessageReceived) event() {}
func (Closed) event()          {}

// Effect is an action the Sequencer asks its owner to perform.
type Effect interface {
	effect()
}

// Send asks for Payload to be written as a text frame after Delay.
type Send struct {
	ID      int64
	Method  string
	Payload []byte
	Delay   time.Duration
	Retry   bool
}

// Deliver asks for a streamed message to be forwarded to the consumer.
type Deliver struct {
	Message stream.Message
}

// Drop reports an inbound frame that was discarded without changing state.
type Drop struct {
	Err error
}

// Fail reports that the handshake cannot continue; the connection should be torn down.
type Fail struct {
	Err error
}

func (Send) effect()    {}
func (Deliver) effect() {}
func (Drop) effect()    {}
func (Fail) effect()    {}
