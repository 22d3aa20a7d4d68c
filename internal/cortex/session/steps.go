package session

// State is a position in the handshake.
type State int

const (
	StateIdle State = iota
	StateQueryHeadset
	StateControlDevice
	StateRequestAccess
	StateAuthorize
	StateCreateSession
	StateSubscribe
	StateStreaming
	StateFailed
	StateClosed
)

// Method names of the bootstrap calls.
const (
	MethodQueryHeadsets = "queryHeadsets"
	MethodControlDevice = "controlDevice"
	MethodRequestAccess = "requestAccess"
	MethodAuthorize     = "authorize"
	MethodCreateSession = "createSession"
	MethodSubscribe     = "subscribe"
)

// CommandStream is the mental command stream subscribed to.
const CommandStream = "com"

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateQueryHeadset:  "query-headset",
	StateControlDevice: "control-device",
	StateRequestAccess: "request-access",
	StateAuthorize:     "authorize",
	StateCreateSession: "create-session",
	StateSubscribe:     "subscribe",
	StateStreaming:     "streaming",
	StateFailed:        "failed",
	StateClosed:        "closed",
}

var stateMethods = map[State]string{
	StateQueryHeadset:  MethodQueryHeadsets,
	StateControlDevice: MethodControlDevice,
	StateRequestAccess: MethodRequestAccess,
	StateAuthorize:     MethodAuthorize,
	StateCreateSession: MethodCreateSession,
	StateSubscribe:     MethodSubscribe,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Method returns the RPC method sent on entering s, or "" for non-request states.
func (s State) Method() string {
	return stateMethods[s]
}

// IsHandshake reports whether s is one of the six request/response steps.
func (s State) IsHandshake() bool {
	return s >= StateQueryHeadset && s <= StateSubscribe
}

// IsTerminal reports whether no further transitions can happen from s.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateClosed
}
