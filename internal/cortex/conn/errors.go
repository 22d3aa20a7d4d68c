package conn

import (
	"errors"
	"fmt"

	"github.com/akyaiy/cortexlink/internal/cortex/session"
)

var (
	// ErrClosed is the cancellation cause of a connection closed by its owner.
	ErrClosed = errors.New("connection closed")
	// ErrHandshakeTimeout is reported when the handshake does not reach streaming in time.
	ErrHandshakeTimeout = errors.New("handshake timed out")
	// ErrConsumerPanic ends a connection whose consumer panicked.
	ErrConsumerPanic = errors.New("consumer panicked")
)

// ConnectionError is a transport failure: the service could not be reached or the
// socket broke while in use.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cortex %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a fresh connection may succeed where this one failed.
// Transport failures, timeouts and missing resources are retryable; rejected
// credentials and consumer panics are not.
func Retryable(err error) bool {
	var ce *ConnectionError
	switch {
	case err == nil:
		return false
	case errors.As(err, &ce):
		return true
	case errors.Is(err, session.ErrAuth),
		errors.Is(err, session.ErrRejected),
		errors.Is(err, session.ErrEncode):
		return false
	}
	return errors.Is(err, session.ErrNoHeadset) ||
		errors.Is(err, session.ErrSession) ||
		errors.Is(err, session.ErrSubscriptionFailed)
}
