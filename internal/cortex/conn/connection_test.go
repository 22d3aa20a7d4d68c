package conn

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/rpc"
	"github.com/akyaiy/cortexlink/internal/cortex/session"
	"github.com/akyaiy/cortexlink/internal/cortex/stream"
	"github.com/akyaiy/cortexlink/internal/engine/metrics"
	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var testCreds = session.Credentials{
	ClientID:     "client-1",
	ClientSecret: "secret-1",
	License:      "lic-1",
	Debit:        1,
}

var handshakeMethods = []string{
	"queryHeadsets", "controlDevice", "requestAccess", "authorize", "createSession", "subscribe",
}

func fastRetry(budget int) session.RetryPolicy {
	return session.RetryPolicy{
		Budget: budget,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(5 * time.Millisecond)
		},
	}
}

func collector(n int) (stream.Consumer, <-chan stream.Message) {
	ch := make(chan stream.Message, n)
	return stream.ConsumerFunc(func(m stream.Message) { ch <- m }), ch
}

func waitDone(t *testing.T, c *Connection) error {
	t.Helper()
	select {
	case <-c.Done():
		return c.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not end")
		return nil
	}
}

func TestOpen_StreamsAfterHandshake(t *testing.T) {
	frames := []string{
		`{"com":["left",0.61],"sid":"sess-1","time":1.5}`,
		`{"com":["neutral",0],"sid":"sess-1","time":1.8}`,
		`{"sys":["mentalCommandTraining","MC_Started"],"sid":"sess-1","time":2.1}`,
	}
	f := &fakeCortex{stream: frames}
	url := newFakeCortex(t, f)

	consumer, got := collector(len(frames))
	m := metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
	c, err := Open(context.Background(), url, testCreds, consumer, WithMetrics(m))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	for i, want := range frames {
		select {
		case msg := <-got:
			if string(msg.Raw) != want {
				t.Errorf("message %d = %s; want %s", i, msg.Raw, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	if got := f.methods(); !reflect.DeepEqual(got, handshakeMethods) {
		t.Errorf("requests = %v; want %v", got, handshakeMethods)
	}
	if c.State() != session.StateStreaming {
		t.Errorf("State() = %v; want streaming", c.State())
	}
	st := c.Snapshot()
	if st.HeadsetID != "EPOCX-1234" || st.SessionID != "sess-1" || !st.Subscribed || st.SubscribeAttempts != 1 {
		t.Errorf("Snapshot() = %+v", st)
	}
	if st.ID != c.ID() || st.ID == "" {
		t.Errorf("Snapshot().ID = %q; want %q", st.ID, c.ID())
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := c.Err(); err != nil {
		t.Errorf("Err() after Close = %v; want nil", err)
	}
	if c.State() != session.StateClosed {
		t.Errorf("State() after Close = %v; want closed", c.State())
	}
	// second close is a no-op
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestOpen_ConsumerPanicEndsConnection(t *testing.T) {
	f := &fakeCortex{stream: []string{`{"com":["left",0.4]}`, `{"com":["right",0.8]}`}}
	url := newFakeCortex(t, f)

	var calls int
	consumer := stream.ConsumerFunc(func(stream.Message) {
		calls++
		panic("consumer bug")
	})
	c, err := Open(context.Background(), url, testCreds, consumer)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = waitDone(t, c)
	if !errors.Is(err, ErrConsumerPanic) {
		t.Fatalf("Err() = %v; want ErrConsumerPanic", err)
	}
	if Retryable(err) {
		t.Errorf("consumer panic should not be retryable")
	}
	if calls != 1 {
		t.Errorf("consumer called %d times; want 1", calls)
	}
	if c.State() != session.StateClosed {
		t.Errorf("State() = %v; want closed", c.State())
	}
}

func TestOpen_SubscribeRetry(t *testing.T) {
	f := &fakeCortex{emptySubscribes: 2, stream: []string{`{"com":["push",0.9]}`}}
	url := newFakeCortex(t, f)

	consumer, got := collector(1)
	c, err := Open(context.Background(), url, testCreds, consumer, WithRetryPolicy(fastRetry(5)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no message after retried subscribe")
	}

	subs := f.subscribeRequests()
	if len(subs) != 3 {
		t.Fatalf("subscribe requests = %d; want 3", len(subs))
	}
	for _, s := range subs[1:] {
		if s.ID != subs[0].ID {
			t.Errorf("retry id = %d; want %d", s.ID, subs[0].ID)
		}
	}
	if n := c.Snapshot().SubscribeAttempts; n != 3 {
		t.Errorf("SubscribeAttempts = %d; want 3", n)
	}
}

func TestOpen_SubscribeBudgetExhausted(t *testing.T) {
	f := &fakeCortex{emptySubscribes: 100}
	url := newFakeCortex(t, f)

	c, err := Open(context.Background(), url, testCreds, nil, WithRetryPolicy(fastRetry(3)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = waitDone(t, c)
	if !errors.Is(err, session.ErrSubscriptionFailed) {
		t.Fatalf("Err() = %v; want ErrSubscriptionFailed", err)
	}
	if n := len(f.subscribeRequests()); n != 3 {
		t.Errorf("subscribe requests = %d; want 3", n)
	}
	if c.State() != session.StateClosed {
		t.Errorf("State() = %v; want closed", c.State())
	}
}

func TestOpen_ErrorResponseIsFatal(t *testing.T) {
	tests := []struct {
		method string
		kind   error
	}{
		{"queryHeadsets", session.ErrNoHeadset},
		{"requestAccess", session.ErrRejected},
		{"authorize", session.ErrAuth},
		{"createSession", session.ErrSession},
		{"subscribe", session.ErrSubscriptionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			f := &fakeCortex{errorOn: tt.method}
			url := newFakeCortex(t, f)

			c, err := Open(context.Background(), url, testCreds, nil)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			err = waitDone(t, c)
			if !errors.Is(err, tt.kind) {
				t.Errorf("Err() = %v; want %v", err, tt.kind)
			}
			var rerr *rpc.RPCError
			if !errors.As(err, &rerr) || rerr.Code != -32021 {
				t.Errorf("Err() = %v; want wrapped RPCError -32021", err)
			}
			methods := f.methods()
			if last := methods[len(methods)-1]; last != tt.method {
				t.Errorf("last request = %s; want %s", last, tt.method)
			}
		})
	}
}

func TestOpen_DialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c, err := Open(context.Background(), url, testCreds, nil)
	if c != nil {
		t.Errorf("Open returned a connection on failure")
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Op != "dial" || ce.URL != url {
		t.Fatalf("Open error = %v; want dial ConnectionError", err)
	}
	if !Retryable(err) {
		t.Errorf("dial failure should be retryable")
	}
}

func TestOpen_ServerGoesAway(t *testing.T) {
	f := &fakeCortex{stream: []string{`{"com":["lift",0.3]}`}, dropFirst: true}
	url := newFakeCortex(t, f)

	consumer, got := collector(1)
	c, err := Open(context.Background(), url, testCreds, consumer)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = waitDone(t, c)
	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Op != "read" {
		t.Fatalf("Err() = %v; want read ConnectionError", err)
	}
	if len(got) != 1 {
		t.Errorf("messages = %d; want 1", len(got))
	}
}

func TestOpen_HandshakeTimeout(t *testing.T) {
	f := &fakeCortex{silent: true}
	url := newFakeCortex(t, f)

	c, err := Open(context.Background(), url, testCreds, nil, WithHandshakeTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = waitDone(t, c)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("Err() = %v; want ErrHandshakeTimeout", err)
	}
	if got := f.methods(); !reflect.DeepEqual(got, []string{"queryHeadsets"}) {
		t.Errorf("requests = %v; want only queryHeadsets", got)
	}
}

func TestOpen_HandshakeTimeoutIncludesDial(t *testing.T) {
	f := &fakeCortex{silent: true, upgradeDelay: 400 * time.Millisecond}
	url := newFakeCortex(t, f)

	const timeout = 500 * time.Millisecond
	start := time.Now()
	c, err := Open(context.Background(), url, testCreds, nil, WithHandshakeTimeout(timeout))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = waitDone(t, c)
	elapsed := time.Since(start)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("Err() = %v; want ErrHandshakeTimeout", err)
	}
	if elapsed > timeout+300*time.Millisecond {
		t.Errorf("handshake ended after %s; want about %s", elapsed, timeout)
	}
}

func TestOpen_ContextCancel(t *testing.T) {
	f := &fakeCortex{silent: true}
	url := newFakeCortex(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := Open(ctx, url, testCreds, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cancel()
	if err := waitDone(t, c); !errors.Is(err, context.Canceled) {
		t.Errorf("Err() = %v; want context.Canceled", err)
	}
}

func TestWait(t *testing.T) {
	f := &fakeCortex{silent: true}
	url := newFakeCortex(t, f)

	c, err := Open(context.Background(), url, testCreds, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v; want DeadlineExceeded", err)
	}
	go c.Close()
	if err := c.Wait(context.Background()); err != nil {
		t.Errorf("Wait() after Close = %v; want nil", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection", &ConnectionError{Op: "read", Err: errors.New("eof")}, true},
		{"no headset", &session.StepError{Step: session.StateQueryHeadset, Kind: session.ErrNoHeadset}, true},
		{"subscription", &session.StepError{Step: session.StateSubscribe, Kind: session.ErrSubscriptionFailed}, true},
		{"auth", &session.StepError{Step: session.StateAuthorize, Kind: session.ErrAuth}, false},
		{"rejected", &session.StepError{Step: session.StateRequestAccess, Kind: session.ErrRejected}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v; want %v", tt.err, got, tt.want)
			}
		})
	}
}
