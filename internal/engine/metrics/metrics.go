// Package metrics exposes Prometheus collectors for the Cortex connection.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "cortexlink").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

type Metrics struct {
	connections       *prometheus.CounterVec
	requestsSent      *prometheus.CounterVec
	subscribeRetries  prometheus.Counter
	messagesReceived  prometheus.Counter
	messagesForwarded prometheus.Counter
	messagesDropped   *prometheus.CounterVec
	handshakeFailures *prometheus.CounterVec
	queueDropped      prometheus.Counter
	state             prometheus.Gauge
}

func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "cortexlink",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_total",
			Help:        "Connection attempts by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"outcome"}),

		requestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "requests_sent_total",
			Help:        "JSON-RPC requests written to the service",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method"}),

		subscribeRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "subscribe_retries_total",
			Help:        "Subscribe requests resent after an empty answer",
			ConstLabels: cfg.ConstLabels,
		}),

		messagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_received_total",
			Help:        "Frames read from the service",
			ConstLabels: cfg.ConstLabels,
		}),

		messagesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_forwarded_total",
			Help:        "Streamed messages handed to the consumer",
			ConstLabels: cfg.ConstLabels,
		}),

		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_dropped_total",
			Help:        "Inbound frames discarded by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),

		handshakeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "handshake_failures_total",
			Help:        "Fatal handshake failures by step",
			ConstLabels: cfg.ConstLabels,
		}, []string{"step"}),

		queueDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "queue_dropped_total",
			Help:        "Streamed messages dropped by a consumer that fell behind",
			ConstLabels: cfg.ConstLabels,
		}),

		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "handshake_state",
			Help:        "Current handshake state of the active connection",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func (m *Metrics) ConnectionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RequestSent(method string, retry bool) {
	if m == nil {
		return
	}
	m.requestsSent.WithLabelValues(method).Inc()
	if retry {
		m.subscribeRetries.Inc()
	}
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
}

func (m *Metrics) MessageForwarded() {
	if m == nil {
		return
	}
	m.messagesForwarded.Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) HandshakeFailed(step string) {
	if m == nil {
		return
	}
	m.handshakeFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}

func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
