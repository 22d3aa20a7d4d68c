package conn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/session"
	"github.com/cenkalti/backoff/v5"
)

func fastReconnect(tries uint) ReconnectPolicy {
	return ReconnectPolicy{
		NewBackOff: func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) },
		MaxTries:   tries,
	}
}

func TestSupervisor_Reconnects(t *testing.T) {
	f := &fakeCortex{stream: []string{`{"com":["right",0.7]}`}, dropFirst: true}
	url := newFakeCortex(t, f)

	consumer, got := collector(2)
	s := NewSupervisor(url, testCreds, consumer, fastReconnect(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	if n := s.Attempts(); n != 2 {
		t.Errorf("Attempts() = %d; want 2", n)
	}
	if c := s.Current(); c == nil || c.State() != session.StateStreaming {
		t.Errorf("Current() is not streaming")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v; want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSupervisor_StopsOnPermanentError(t *testing.T) {
	f := &fakeCortex{errorOn: "authorize"}
	url := newFakeCortex(t, f)

	s := NewSupervisor(url, testCreds, nil, fastReconnect(5), nil)
	err := s.Run(context.Background())
	if !errors.Is(err, session.ErrAuth) {
		t.Fatalf("Run() = %v; want ErrAuth", err)
	}
	if n := s.Attempts(); n != 1 {
		t.Errorf("Attempts() = %d; want 1", n)
	}
}

func TestSupervisor_GivesUpAfterMaxTries(t *testing.T) {
	f := &fakeCortex{errorOn: "queryHeadsets"}
	url := newFakeCortex(t, f)

	s := NewSupervisor(url, testCreds, nil, fastReconnect(3), nil)
	err := s.Run(context.Background())
	if !errors.Is(err, session.ErrNoHeadset) {
		t.Fatalf("Run() = %v; want ErrNoHeadset", err)
	}
	if n := s.Attempts(); n != 3 {
		t.Errorf("Attempts() = %d; want 3", n)
	}
}
