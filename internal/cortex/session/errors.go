package session

import (
	"errors"
	"fmt"

	"github.com/akyaiy/cortexlink/internal/cortex/rpc"
)

var (
	ErrNoHeadset          = errors.New("no headset available")
	ErrRejected           = errors.New("request rejected by the service")
	ErrAuth               = errors.New("authorization failed")
	ErrSession            = errors.New("session creation failed")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrEncode             = errors.New("request encoding failed")
)

// StepError is a fatal handshake failure at Step. Kind is one of the sentinel errors of
// this package; Cause, when set, is the underlying error (often an *rpc.RPCError).
type StepError struct {
	Step  State
	Kind  error
	Cause error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("handshake %s: %s: %s", e.Step, e.Kind, e.Cause)
	}
	return fmt.Sprintf("handshake %s: %s", e.Step, e.Kind)
}

func (e *StepError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// kindFor is the error kind reported when the service answers step with rerr. A request
// the service could not parse or dispatch is rejected whatever the step.
func kindFor(step State, rerr *rpc.RPCError) error {
	if rerr.Malformed() {
		return ErrRejected
	}
	switch step {
	case StateQueryHeadset:
		return ErrNoHeadset
	case StateAuthorize:
		return ErrAuth
	case StateCreateSession:
		return ErrSession
	case StateSubscribe:
		return ErrSubscriptionFailed
	default:
		return ErrRejected
	}
}
