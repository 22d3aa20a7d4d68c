package rpc

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// NewRequest builds a request envelope. A nil params map is sent as {}.
func NewRequest(id int64, method string, params map[string]any) *Request {
	if params == nil {
		params = map[string]any{}
	}
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Encode serializes req to the bytes of a single text frame.
func Encode(req *Request) ([]byte, error) {
	if req.JSONRPC == "" {
		req.JSONRPC = JSONRPCVersion
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return json.Marshal(req)
}

type responseWire struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Decode parses a response frame. It fails with *DecodeError when the frame is not
// UTF-8 JSON, is not an object or has no integer id.
func Decode(data []byte) (*Response, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Reason: "frame is not valid utf-8"}
	}
	var wire responseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{Reason: "invalid json", Err: err}
	}
	if !present(wire.ID) {
		return nil, &DecodeError{Reason: "missing id"}
	}
	var id int64
	if err := json.Unmarshal(wire.ID, &id); err != nil {
		return nil, &DecodeError{Reason: "id is not an integer", Err: err}
	}
	return &Response{
		ID:     id,
		Result: wire.Result,
		Error:  wire.Error,
	}, nil
}

// DecodeMessage validates a streamed frame and returns it untouched together with its
// generic decoded form. No id is required.
func DecodeMessage(data []byte) (json.RawMessage, any, error) {
	if !utf8.Valid(data) {
		return nil, nil, &DecodeError{Reason: "frame is not valid utf-8"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, nil, &DecodeError{Reason: "invalid json", Err: err}
	}
	if dec.More() {
		return nil, nil, &DecodeError{Reason: "trailing data after json value"}
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return raw, v, nil
}
