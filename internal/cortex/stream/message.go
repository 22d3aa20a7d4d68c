// Package stream delivers messages received after subscription to consumers.
package stream

import (
	"encoding/json"
	"time"
)

// knownStreams lists the stream keys the service puts at the top level of a data message.
var knownStreams = []string{"com", "fac", "met", "pow", "mot", "dev", "eq", "eeg", "sys"}

// Message is one streamed frame. Raw holds the exact bytes received; Payload is the same
// value decoded with json.Number for numbers.
type Message struct {
	Raw        json.RawMessage
	Payload    any
	ReceivedAt time.Time
}

// Fields returns the payload as an object.
func (m Message) Fields() (map[string]any, bool) {
	f, ok := m.Payload.(map[string]any)
	return f, ok
}

// Stream names the data stream the message belongs to, or "" if it carries none of the
// known stream keys.
func (m Message) Stream() string {
	f, ok := m.Fields()
	if !ok {
		return ""
	}
	for _, s := range knownStreams {
		if _, ok := f[s]; ok {
			return s
		}
	}
	return ""
}

// Com extracts the [command, weight] pair of a mental command message.
func (m Message) Com() (command string, weight float64, ok bool) {
	f, ok := m.Fields()
	if !ok {
		return "", 0, false
	}
	pair, ok := f["com"].([]any)
	if !ok || len(pair) < 2 {
		return "", 0, false
	}
	command, ok = pair[0].(string)
	if !ok {
		return "", 0, false
	}
	weight, ok = number(pair[1])
	if !ok {
		return "", 0, false
	}
	return command, weight, true
}

// SessionID returns the "sid" member if present.
func (m Message) SessionID() string {
	f, _ := m.Fields()
	sid, _ := f["sid"].(string)
	return sid
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
