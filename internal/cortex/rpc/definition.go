// Package rpc implements the JSON-RPC 2.0 envelope used to talk to the Cortex service:
// request/response types, the wire codec and the correlator matching responses to the
// calls that are still waiting for them.
package rpc

import (
	"bytes"
	"encoding/json"
)

const (
	JSONRPCVersion = "2.0"
)

// Request is an outbound JSON-RPC call. Params is always serialized as an object.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// Response is an inbound reply to a Request.
// Result and Error are kept raw; their meaning depends on the call that was made.
type Response struct {
	ID     int64
	Result json.RawMessage
	Error  json.RawMessage
}

// HasResult reports whether the response carries a non-null result member.
func (r *Response) HasResult() bool {
	return present(r.Result)
}

// RemoteError returns the error member as *RPCError, or nil if the response has none.
func (r *Response) RemoteError() *RPCError {
	if !present(r.Error) {
		return nil
	}
	var e RPCError
	if err := json.Unmarshal(r.Error, &e); err != nil || (e.Code == 0 && e.Message == "") {
		return &RPCError{Message: string(r.Error)}
	}
	return &e
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
