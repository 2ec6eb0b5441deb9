// Package rabbitmq publishes Instana span records to a RabbitMQ exchange as
// persistent JSON messages.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/collector"
	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability/noop"
	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

var (
	// ErrMissingURL indica que a URL não foi fornecida.
	ErrMissingURL = errors.New("rabbitmq: connection URL is required")

	// ErrTransportClosed indica que o transport foi fechado.
	ErrTransportClosed = errors.New("rabbitmq: transport is closed")
)

var _ collector.Transport = (*Transport)(nil)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Options configures Dial.
type Options struct {
	Exchange   string
	RoutingKey string

	DialInitialInterval time.Duration
	DialMaxInterval     time.Duration
	DialTimeout         time.Duration

	Observability observability.Observability
}

func (o *Options) withDefaults() {
	if o.RoutingKey == "" {
		o.RoutingKey = "instana.spans"
	}
	if o.DialInitialInterval <= 0 {
		o.DialInitialInterval = 500 * time.Millisecond
	}
	if o.DialMaxInterval <= 0 {
		o.DialMaxInterval = 5 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 30 * time.Second
	}
	if o.Observability == nil {
		o.Observability = noop.NewProvider()
	}
}

// Connection is the subset of *amqp.Connection used by the transport.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a new connection to the broker.
type Dialer func() (Connection, error)

// URLDialer dials url with amqp.Dial.
func URLDialer(url string) Dialer {
	return func() (Connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, err
		}
		return amqpConnection{conn}, nil
	}
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	channel, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return channel, nil
}

// Transport publishes records one message per span.
type Transport struct {
	exchange   string
	routingKey string
	logger     observability.Logger

	mu      sync.Mutex
	dial    Dialer
	conn    Connection
	channel Channel
	closed  bool
}

// Dial connects to url, retrying with exponential backoff until DialTimeout, and
// opens the publishing channel.
func Dial(ctx context.Context, url string, opts Options) (*Transport, error) {
	if url == "" {
		return nil, ErrMissingURL
	}
	return DialWith(ctx, URLDialer(url), opts)
}

// DialWith is Dial with a custom Dialer. The dialer is used again whenever the
// connection is lost.
func DialWith(ctx context.Context, dial Dialer, opts Options) (*Transport, error) {
	opts.withDefaults()

	logger := opts.Observability.Logger().With(observability.String("component", "instana.rabbitmq"))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.DialInitialInterval
	policy.MaxInterval = opts.DialMaxInterval
	policy.MaxElapsedTime = opts.DialTimeout

	var conn Connection
	operation := func() error {
		c, err := dial()
		if err != nil {
			logger.Warn(ctx, "connection attempt failed", observability.Error(err))
			return err
		}
		conn = c
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	t := &Transport{
		exchange:   opts.Exchange,
		routingKey: opts.RoutingKey,
		logger:     logger,
		dial:       dial,
		conn:       conn,
	}

	if _, err := t.ensureChannel(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info(ctx, "connected to RabbitMQ successfully",
		observability.String("exchange", opts.Exchange),
		observability.String("routing_key", opts.RoutingKey),
	)
	return t, nil
}

// NewWithChannel wraps an already open channel. The transport cannot reconnect
// once that channel is closed.
func NewWithChannel(channel Channel, exchange, routingKey string) *Transport {
	return &Transport{
		exchange:   exchange,
		routingKey: routingKey,
		logger:     noop.NewProvider().Logger(),
		channel:    channel,
	}
}

// ensureChannel reabre o channel quando o anterior foi fechado pelo broker e
// redisca a conexão quando ela também caiu. Cada chamada faz no máximo uma
// tentativa; o collector cuida do backoff entre elas.
func (t *Transport) ensureChannel(ctx context.Context) (Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if t.channel != nil {
		return t.channel, nil
	}

	if t.conn == nil || t.conn.IsClosed() {
		if t.dial == nil {
			return nil, amqp.ErrClosed
		}
		if t.conn != nil {
			_ = t.conn.Close()
			t.conn = nil
		}

		conn, err := t.dial()
		if err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
		t.conn = conn
		t.logger.Info(ctx, "reconnected to RabbitMQ")
	}

	channel, err := t.conn.Channel()
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			_ = t.conn.Close()
			t.conn = nil
		}
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	t.channel = channel
	return channel, nil
}

func (t *Transport) dropChannel(channel Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.channel == channel {
		_ = channel.Close()
		t.channel = nil
	}
}

// Send publishes every record in order. A closed channel is dropped so the
// next attempt opens a fresh one, redialing the broker if the connection is gone.
func (t *Transport) Send(ctx context.Context, records []instana.Record) error {
	channel, err := t.ensureChannel(ctx)
	if err != nil {
		if errors.Is(err, ErrTransportClosed) {
			return backoff.Permanent(err)
		}
		return err
	}

	for _, record := range records {
		body, err := sonic.Marshal(record)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to encode span %s: %w", record.SpanID, err))
		}

		msg := amqp.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    record.SpanID,
			Body:         body,
			Headers:      amqp.Table{"trace_id": record.TraceID},
		}
		if record.Service != "" {
			msg.Headers["service"] = record.Service
		}

		if err := channel.PublishWithContext(ctx, t.exchange, t.routingKey, false, false, msg); err != nil {
			if errors.Is(err, amqp.ErrClosed) {
				t.logger.Warn(ctx, "channel closed unexpectedly", observability.Error(err))
				t.dropChannel(channel)
			}
			return fmt.Errorf("failed to publish span %s: %w", record.SpanID, err)
		}
	}
	return nil
}

// Close closes the channel and the connection it owns.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if t.channel != nil {
		if err := t.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		t.channel = nil
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
