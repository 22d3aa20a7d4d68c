// Package conn owns the WebSocket link to the Cortex service. A Connection dials once,
// runs the handshake through a session.Sequencer and forwards every streamed message
// to a single consumer until it is closed or fails. It never reconnects by itself; see
// Supervisor for that.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/akyaiy/cortexlink/internal/core/utils"
	"github.com/akyaiy/cortexlink/internal/cortex/rpc"
	"github.com/akyaiy/cortexlink/internal/cortex/session"
	"github.com/akyaiy/cortexlink/internal/cortex/stream"
	"github.com/akyaiy/cortexlink/internal/engine/metrics"
	"github.com/gorilla/websocket"
)

const (
	DefaultURL          = "wss://localhost:6868"
	DefaultWriteTimeout = 10 * time.Second
	closeGracePeriod    = time.Second
)

type options struct {
	log              *slog.Logger
	dialer           *websocket.Dialer
	header           http.Header
	retry            session.RetryPolicy
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	metrics          *metrics.Metrics
}

type Option func(*options)

func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithDialer replaces the default dialer, e.g. to trust the self-signed certificate the
// local Cortex service presents.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h
	}
}

func WithRetryPolicy(p session.RetryPolicy) Option {
	return func(o *options) {
		o.retry = p
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithHandshakeTimeout bounds the dial and the time from dial to streaming.
// Zero disables the bound.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Connection is one live link to the service. All protocol state is owned by a single
// event loop goroutine; the exported methods only read snapshots.
type Connection struct {
	id  string
	url string
	log *slog.Logger

	ws      *websocket.Conn
	seq     *session.Sequencer
	fwd     *stream.Forwarder
	metrics *metrics.Metrics

	writeTimeout time.Duration

	// zero when the handshake is unbounded
	handshakeDeadline time.Time

	// loop-owned
	retryTimer *time.Timer
	pending    *session.Send

	cancel context.CancelCauseFunc
	done   chan struct{}

	mu     sync.RWMutex
	state  session.State
	status Status
	err    error
}

// Status is a point-in-time view of a connection.
type Status struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	State             string    `json:"state"`
	HeadsetID         string    `json:"headset,omitempty"`
	SessionID         string    `json:"session,omitempty"`
	Subscribed        bool      `json:"subscribed"`
	SubscribeAttempts int       `json:"subscribe_attempts"`
	Forwarded         uint64    `json:"forwarded"`
	TokenExpiresAt    time.Time `json:"token_expires_at,omitzero"`
	StartedAt         time.Time `json:"started_at"`
	Err               string    `json:"error,omitempty"`
}

// Open dials url and starts the handshake. It returns once the socket is connected; the
// handshake and streaming continue in the background until ctx is cancelled, Close is
// called or a fatal error occurs. Streamed messages are handed to consumer on the event
// loop in arrival order.
func Open(ctx context.Context, url string, creds session.Credentials, consumer stream.Consumer, opts ...Option) (*Connection, error) {
	o := options{
		log:          slog.New(slog.DiscardHandler),
		dialer:       websocket.DefaultDialer,
		retry:        session.DefaultRetryPolicy(),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if url == "" {
		url = DefaultURL
	}

	id := utils.NewID()
	log := o.log.With(slog.String("conn", utils.ShortID(id)))

	var deadline time.Time
	dialCtx := ctx
	if o.handshakeTimeout > 0 {
		deadline = time.Now().Add(o.handshakeTimeout)
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	log.Debug("dialing", slog.String("url", url))
	ws, resp, err := o.dialer.DialContext(dialCtx, url, o.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		o.metrics.ConnectionAttempt("error")
		log.Error("dial failed", slog.String("url", url), slog.String("err", err.Error()))
		return nil, &ConnectionError{Op: "dial", URL: url, Err: err}
	}
	o.metrics.ConnectionAttempt("ok")

	loopCtx, cancel := context.WithCancelCause(ctx)
	c := &Connection{
		id:               id,
		url:              url,
		log:              log,
		ws:               ws,
		fwd:              stream.NewForwarder(consumer),
		metrics:          o.metrics,
		writeTimeout:      o.writeTimeout,
		handshakeDeadline: deadline,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
	c.seq = session.NewSequencer(creds,
		session.WithLogger(log),
		session.WithRetryPolicy(o.retry),
	)
	c.status = Status{ID: id, URL: url, StartedAt: time.Now()}
	c.publish()

	log.Info("connected", slog.String("url", url), slog.Any("credentials", creds))

	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go c.readLoop(loopCtx, inbound, readErr)
	go c.run(loopCtx, inbound, readErr)
	return c, nil
}

func (c *Connection) ID() string {
	return c.id
}

// Done is closed once the connection has been torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended: nil while it is running or after Close,
// otherwise a *ConnectionError, a *session.StepError or the cancellation cause of the
// context passed to Open.
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Wait blocks until the connection ends or ctx is done.
func (c *Connection) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down and waits for the event loop to exit. It is safe to
// call more than once and from any goroutine.
func (c *Connection) Close() error {
	c.cancel(ErrClosed)
	<-c.done
	return nil
}

// State returns the handshake state as of the last processed event.
func (c *Connection) State() session.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the current status.
func (c *Connection) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Connection) readLoop(ctx context.Context, inbound chan<- []byte, readErr chan<- error) {
	defer utils.CatchPanicWithCancel(func() { c.cancel(nil) })
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Connection) run(ctx context.Context, inbound <-chan []byte, readErr <-chan error) {
	defer close(c.done)

	var handshakeC <-chan time.Time
	if !c.handshakeDeadline.IsZero() {
		t := time.NewTimer(time.Until(c.handshakeDeadline))
		defer t.Stop()
		handshakeC = t.C
	}

	err := c.apply(c.seq.Handle(session.Opened{}))
	for err == nil {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); !errors.Is(cause, ErrClosed) {
				err = cause
			}
			c.teardown(err)
			return

		case data := <-inbound:
			c.metrics.MessageReceived()
			err = c.apply(c.seq.Handle(session.MessageReceived{Data: data}))

		case rerr := <-readErr:
			err = &ConnectionError{Op: "read", URL: c.url, Err: rerr}

		case <-c.retryC():
			s := *c.pending
			c.retryTimer, c.pending = nil, nil
			err = c.write(s)

		case <-handshakeC:
			if c.seq.State() != session.StateStreaming {
				err = &ConnectionError{Op: "handshake", URL: c.url, Err: ErrHandshakeTimeout}
			}
		}
	}
	c.teardown(err)
}

func (c *Connection) apply(effects []session.Effect) error {
	defer c.publish()
	for _, eff := range effects {
		switch e := eff.(type) {
		case session.Send:
			if e.Delay > 0 {
				c.schedule(e)
				continue
			}
			if err := c.write(e); err != nil {
				return err
			}
		case session.Deliver:
			if err := c.forward(e.Message); err != nil {
				return err
			}
		case session.Drop:
			c.metrics.MessageDropped(dropReason(e.Err))
		case session.Fail:
			var se *session.StepError
			if errors.As(e.Err, &se) {
				c.metrics.HandshakeFailed(se.Step.String())
			}
			return e.Err
		}
	}
	return nil
}

// forward hands msg to the consumer. A panicking consumer ends the connection instead of
// the process.
func (c *Connection) forward(msg stream.Message) (err error) {
	defer utils.CatchPanicWithFallback(func(rec any) {
		err = fmt.Errorf("%w: %v", ErrConsumerPanic, rec)
	})
	if c.fwd.Forward(msg) {
		c.metrics.MessageForwarded()
	}
	return nil
}

func (c *Connection) write(s session.Send) error {
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, s.Payload); err != nil {
		return &ConnectionError{Op: "write", URL: c.url, Err: err}
	}
	c.metrics.RequestSent(s.Method, s.Retry)
	return nil
}

func (c *Connection) schedule(s session.Send) {
	c.stopRetry()
	c.pending = &s
	c.retryTimer = time.NewTimer(s.Delay)
	c.log.Debug("request scheduled", slog.String("method", s.Method), slog.Duration("delay", s.Delay))
}

func (c *Connection) retryC() <-chan time.Time {
	if c.retryTimer == nil {
		return nil
	}
	return c.retryTimer.C
}

func (c *Connection) stopRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer, c.pending = nil, nil
}

func (c *Connection) teardown(err error) {
	c.cancel(ErrClosed)
	c.stopRetry()

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))
	_ = c.ws.Close()

	c.mu.Lock()
	c.seq.Handle(session.Closed{Reason: err})
	c.err = err
	c.mu.Unlock()
	c.fwd.Close()
	c.publish()

	if err != nil {
		c.log.Error("connection ended", slog.String("err", err.Error()))
		return
	}
	c.log.Info("connection closed", slog.Uint64("forwarded", c.fwd.Forwarded()))
}

// publish refreshes the status snapshot from the sequencer.
func (c *Connection) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.seq.Context()
	c.state = c.seq.State()
	c.status.State = c.state.String()
	c.status.HeadsetID = sc.HeadsetID
	c.status.SessionID = sc.SessionID
	c.status.Subscribed = sc.Subscribed
	c.status.TokenExpiresAt = sc.TokenExpiresAt
	c.status.SubscribeAttempts = c.seq.SubscribeAttempts()
	c.status.Forwarded = c.fwd.Forwarded()
	if c.err != nil {
		c.status.Err = c.err.Error()
	}
	c.metrics.SetState(int(c.state))
}

func dropReason(err error) string {
	var unknown *rpc.UnknownIDError
	if errors.As(err, &unknown) {
		return "unknown-id"
	}
	return "decode"
}
