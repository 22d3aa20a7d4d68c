package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/conn"
	"github.com/akyaiy/cortexlink/internal/engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func testReport() Report {
	return Report{
		Instance: "inst-1",
		Client:   "cortexlink",
		Version:  "v0.0.0-test",
		Uptime:   "1s",
		Attempts: 1,
		Connection: &conn.Status{
			ID:         "c1",
			State:      "streaming",
			HeadsetID:  "EPOCX-1",
			SessionID:  "s1",
			Subscribed: true,
		},
	}
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	m.MessageReceived()

	srv := httptest.NewServer(NewRouter(testReport, reg))
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"status", http.MethodGet, "/status", http.StatusOK, `"state":"streaming"`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "cortexlink_messages_received_total 1"},
		{"favicon", http.MethodGet, "/favicon.ico", http.StatusNoContent, ""},
		{"not found", http.MethodGet, "/nope", http.StatusNotFound, `"error":"not found"`},
		{"wrong method", http.MethodPost, "/status", http.StatusMethodNotAllowed, `"code":405`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d; want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body %q does not contain %q", body, tt.wantBody)
			}
		})
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := New("127.0.0.1", "0", NewRouter(testReport, nil), nil)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	var got Report
	err = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Instance != "inst-1" || got.Connection == nil || got.Connection.SessionID != "s1" {
		t.Errorf("report = %+v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
