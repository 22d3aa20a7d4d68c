package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/rpc"
	"github.com/akyaiy/cortexlink/internal/cortex/stream"
)

// Sequencer walks one connection through the bootstrap handshake and then turns every
// inbound frame into a Deliver effect. It is not safe for concurrent use: the owning
// connection feeds it events one at a time.
type Sequencer struct {
	creds Credentials
	sc    Context
	state State

	calls *rpc.Correlator[State]
	retry *retrier

	subscribeID    int64
	subscribeFrame []byte

	log *slog.Logger
	now func() time.Time
}

type Option func(*Sequencer)

func WithLogger(log *slog.Logger) Option {
	return func(s *Sequencer) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Sequencer) {
		s.retry = p.start()
	}
}

// WithClock overrides the time source used to stamp streamed messages.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSequencer(creds Credentials, opts ...Option) *Sequencer {
	s := &Sequencer{
		creds: creds,
		state: StateIdle,
		calls: rpc.NewCorrelator[State](),
		log:   slog.New(slog.DiscardHandler),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry == nil {
		s.retry = DefaultRetryPolicy().start()
	}
	return s
}

// State returns the current position in the handshake.
func (s *Sequencer) State() State {
	return s.state
}

// Context returns a copy of the handshake progress record.
func (s *Sequencer) Context() Context {
	return s.sc
}

// SubscribeAttempts returns how many subscribe requests were issued.
func (s *Sequencer) SubscribeAttempts() int {
	return s.retry.attempts
}

// Handle advances the state machine by one event.
func (s *Sequencer) Handle(ev Event) []Effect {
	switch e := ev.(type) {
	case Opened:
		if s.state != StateIdle {
			s.log.Warn("open event ignored", slog.String("state", s.state.String()))
			return nil
		}
		return s.send(StateQueryHeadset, nil)
	case MessageReceived:
		return s.receive(e.Data)
	case Closed:
		if s.state == StateClosed {
			return nil
		}
		s.log.Debug("handshake closed", slog.String("state", s.state.String()))
		s.state = StateClosed
		s.calls.Reset()
		return nil
	}
	return nil
}

func (s *Sequencer) receive(data []byte) []Effect {
	switch {
	case s.state == StateStreaming:
		raw, v, err := rpc.DecodeMessage(data)
		if err != nil {
			s.log.Warn("stream message dropped", slog.String("err", err.Error()))
			return []Effect{Drop{Err: err}}
		}
		return []Effect{Deliver{Message: stream.Message{Raw: raw, Payload: v, ReceivedAt: s.now()}}}
	case !s.state.IsHandshake():
		s.log.Debug("message ignored", slog.String("state", s.state.String()))
		return nil
	}

	resp, err := rpc.Decode(data)
	if err != nil {
		s.log.Warn("response dropped", slog.String("state", s.state.String()), slog.String("err", err.Error()))
		return []Effect{Drop{Err: err}}
	}
	step, err := s.calls.Match(resp.ID)
	if err != nil {
		s.log.Warn("protocol anomaly, response dropped",
			slog.String("state", s.state.String()), slog.Int64("id", resp.ID))
		return []Effect{Drop{Err: err}}
	}
	s.log.Debug("response", slog.String("method", step.Method()), slog.Int64("id", resp.ID))

	if rerr := resp.RemoteError(); rerr != nil {
		return s.fail(step, kindFor(step, rerr), rerr)
	}

	switch step {
	case StateQueryHeadset:
		var headsets []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp.Result, &headsets); err != nil || len(headsets) == 0 || headsets[0].ID == "" {
			return s.fail(step, ErrNoHeadset, err)
		}
		s.sc.HeadsetID = headsets[0].ID
		return s.send(StateControlDevice, map[string]any{
			"command": "connect",
			"headset": s.sc.HeadsetID,
		})

	case StateControlDevice:
		return s.send(StateRequestAccess, map[string]any{
			"clientId":     s.creds.ClientID,
			"clientSecret": s.creds.ClientSecret,
		})

	case StateRequestAccess:
		return s.send(StateAuthorize, map[string]any{
			"clientId":     s.creds.ClientID,
			"clientSecret": s.creds.ClientSecret,
			"license":      s.creds.License,
			"debit":        s.creds.Debit,
		})

	case StateAuthorize:
		var res struct {
			CortexToken string `json:"cortexToken"`
		}
		if err := json.Unmarshal(resp.Result, &res); err != nil || res.CortexToken == "" {
			return s.fail(step, ErrAuth, err)
		}
		s.sc.AuthToken = res.CortexToken
		if exp, ok := tokenExpiry(res.CortexToken); ok {
			s.sc.TokenExpiresAt = exp
			s.log.Debug("token issued", slog.Time("expires", exp))
		}
		return s.send(StateCreateSession, map[string]any{
			"cortexToken": s.sc.AuthToken,
			"headset":     s.sc.HeadsetID,
			"status":      "active",
		})

	case StateCreateSession:
		var res struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp.Result, &res); err != nil || res.ID == "" {
			return s.fail(step, ErrSession, err)
		}
		s.sc.SessionID = res.ID
		return s.send(StateSubscribe, map[string]any{
			"cortexToken": s.sc.AuthToken,
			"session":     s.sc.SessionID,
			"streams":     []string{CommandStream},
		})

	case StateSubscribe:
		return s.subscribed(resp)
	}
	return nil
}

func (s *Sequencer) subscribed(resp *rpc.Response) []Effect {
	var res struct {
		Success []json.RawMessage `json:"success"`
		Failure []struct {
			StreamName string `json:"streamName"`
			Code       int    `json:"code"`
			Message    string `json:"message"`
		} `json:"failure"`
	}
	_ = json.Unmarshal(resp.Result, &res)

	if len(res.Success) > 0 {
		s.state = StateStreaming
		s.sc.Subscribed = true
		s.log.Info("subscribed", slog.Any("session", s.sc), slog.Int("attempts", s.retry.attempts))
		return nil
	}

	for _, f := range res.Failure {
		s.log.Warn("stream refused", slog.String("stream", f.StreamName), slog.Int("code", f.Code), slog.String("message", f.Message))
	}
	delay, ok := s.retry.next()
	if !ok {
		return s.fail(StateSubscribe, ErrSubscriptionFailed,
			fmt.Errorf("no stream granted after %d attempts", s.retry.attempts))
	}
	s.calls.Rearm(s.subscribeID, StateSubscribe)
	s.retry.sent()
	s.log.Info("subscribe retry", slog.Int("attempt", s.retry.attempts), slog.Duration("delay", delay))
	return []Effect{Send{
		ID:      s.subscribeID,
		Method:  MethodSubscribe,
		Payload: s.subscribeFrame,
		Delay:   delay,
		Retry:   true,
	}}
}

func (s *Sequencer) send(step State, params map[string]any) []Effect {
	id := s.calls.Register(step)
	frame, err := rpc.Encode(rpc.NewRequest(id, step.Method(), params))
	if err != nil {
		return s.fail(step, ErrEncode, err)
	}
	s.state = step
	if step == StateSubscribe {
		s.subscribeID = id
		s.subscribeFrame = frame
		s.retry.sent()
	}
	s.log.Debug("request", slog.String("method", step.Method()), slog.Int64("id", id))
	return []Effect{Send{ID: id, Method: step.Method(), Payload: frame}}
}

func (s *Sequencer) fail(step State, kind, cause error) []Effect {
	s.state = StateFailed
	s.calls.Reset()
	err := &StepError{Step: step, Kind: kind, Cause: cause}
	s.log.Error("handshake failed", slog.String("err", err.Error()))
	return []Effect{Fail{Err: err}}
}
