package rpc

import (
	"fmt"
)

// Standard JSON-RPC 2.0 error codes. The service uses its own codes for everything else.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

var codeNames = map[int]string{
	ErrParseError:     "Parse error",
	ErrInvalidRequest: "Invalid Request",
	ErrMethodNotFound: "Method not found",
	ErrInvalidParams:  "Invalid params",
	ErrInternalError:  "Internal error",
}

// CodeName returns the standard name of code, or "" for a service-defined code.
func CodeName(code int) string {
	return codeNames[code]
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("rpc error: %s", e.Message)
	}
	if name := CodeName(e.Code); name != "" {
		return fmt.Sprintf("rpc error %d (%s): %s", e.Code, name, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Malformed reports whether the service refused the request itself (its framing, method
// or params) rather than the operation it asked for.
func (e *RPCError) Malformed() bool {
	switch e.Code {
	case ErrParseError, ErrInvalidRequest, ErrMethodNotFound, ErrInvalidParams:
		return true
	}
	return false
}

// DecodeError reports an inbound frame that could not be turned into a message.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %s", e.Reason, e.Err.Error())
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnknownIDError reports a response whose id matches no outstanding call.
type UnknownIDError struct {
	ID int64
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("no pending call with id %d", e.ID)
}
