package conn

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeRequest struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// fakeCortex answers the handshake the way the service does and then pushes stream frames.
type fakeCortex struct {
	emptySubscribes int      // empty subscribe answers before success
	errorOn         string   // method answered with an error object
	silent          bool     // read requests, never answer
	stream          []string // frames pushed after a successful subscribe
	dropFirst       bool     // close the first connection after streaming

	upgradeDelay time.Duration // wait before accepting the websocket upgrade

	mu          sync.Mutex
	requests    []fakeRequest
	subscribes  int
	connections int
}

func newFakeCortex(t *testing.T, f *fakeCortex) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (f *fakeCortex) serve(w http.ResponseWriter, r *http.Request) {
	time.Sleep(f.upgradeDelay)
	up := websocket.Upgrader{}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	f.mu.Lock()
	f.connections++
	conn := f.connections
	f.mu.Unlock()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req fakeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		if f.silent {
			continue
		}

		reply, streaming := f.reply(req)
		if err := ws.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
		if !streaming {
			continue
		}
		for _, frame := range f.stream {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if f.dropFirst && conn == 1 {
			return
		}
	}
}

func (f *fakeCortex) reply(req fakeRequest) (string, bool) {
	if req.Method == f.errorOn {
		return fmt.Sprintf(`{"id":%d,"jsonrpc":"2.0","error":{"code":-32021,"message":"invalid client credentials"}}`, req.ID), false
	}
	var result string
	switch req.Method {
	case "queryHeadsets":
		result = `[{"id":"EPOCX-1234","status":"discovered"}]`
	case "controlDevice":
		result = `{"command":"connect","message":"Start connecting to the headset"}`
	case "requestAccess":
		result = `{"accessGranted":true}`
	case "authorize":
		result = `{"cortexToken":"tok-1"}`
	case "createSession":
		result = `{"id":"sess-1","status":"activated"}`
	case "subscribe":
		f.mu.Lock()
		f.subscribes++
		n := f.subscribes
		f.mu.Unlock()
		if n <= f.emptySubscribes {
			result = `{"success":[],"failure":[{"streamName":"com","code":-32016,"message":"stream unavailable"}]}`
		} else {
			result = `{"success":[{"streamName":"com","cols":["act","pow"]}],"failure":[]}`
			return fmt.Sprintf(`{"id":%d,"jsonrpc":"2.0","result":%s}`, req.ID, result), true
		}
	default:
		return fmt.Sprintf(`{"id":%d,"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"}}`, req.ID), false
	}
	return fmt.Sprintf(`{"id":%d,"jsonrpc":"2.0","result":%s}`, req.ID, result), false
}

func (f *fakeCortex) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Method
	}
	return out
}

func (f *fakeCortex) subscribeRequests() []fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeRequest
	for _, r := range f.requests {
		if r.Method == "subscribe" {
			out = append(out, r)
		}
	}
	return out
}
