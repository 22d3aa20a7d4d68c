package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/session"
	"github.com/akyaiy/cortexlink/internal/cortex/stream"
	"github.com/cenkalti/backoff/v5"
)

// ReconnectPolicy controls how a Supervisor replaces a failed connection.
type ReconnectPolicy struct {
	// NewBackOff builds the delay schedule between connections. Nil means an
	// exponential schedule from one second up to MaxInterval.
	NewBackOff func() backoff.BackOff
	// MaxInterval caps the default schedule. Zero means 30s.
	MaxInterval time.Duration
	// MaxTries limits the number of connections opened. Zero means no limit.
	MaxTries uint
}

func (p ReconnectPolicy) backOff() backoff.BackOff {
	if p.NewBackOff != nil {
		return p.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Supervisor keeps a stream alive by opening a fresh Connection, with a fresh handshake,
// each time the previous one fails with a retryable error. The consumer is shared by all
// connections and is never closed by the Supervisor.
type Supervisor struct {
	url      string
	creds    session.Credentials
	consumer stream.Consumer
	policy   ReconnectPolicy
	opts     []Option
	log      *slog.Logger

	mu       sync.RWMutex
	current  *Connection
	attempts int
}

func NewSupervisor(url string, creds session.Credentials, consumer stream.Consumer, policy ReconnectPolicy, log *slog.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		url:      url,
		creds:    creds,
		consumer: consumer,
		policy:   policy,
		opts:     append([]Option{WithLogger(log)}, opts...),
		log:      log,
	}
}

// Run opens connections until ctx is done, a connection is closed cleanly, a
// non-retryable error occurs or the policy gives up. It returns nil when ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	b := s.policy.backOff()

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.log.Warn("reconnecting", slog.String("err", err.Error()), slog.Duration("in", d))
		}),
	}
	if s.policy.MaxTries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(s.policy.MaxTries))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.once(ctx, b)
		if err != nil && !Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, retryOpts...)

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Supervisor) once(ctx context.Context, b backoff.BackOff) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	c, err := Open(ctx, s.url, s.creds, s.consumer, s.opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	<-c.Done()
	err = c.Err()
	if ctx.Err() != nil {
		return nil
	}
	if c.Snapshot().Subscribed {
		// a connection that made it to streaming restarts the schedule
		b.Reset()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Current returns the most recently opened connection, or nil before the first one.
func (s *Supervisor) Current() *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Attempts returns how many connections have been opened or tried.
func (s *Supervisor) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}
