// Package kafka publishes Instana span records to a Kafka topic, one message per
// record keyed by trace id so every span of a trace lands on the same partition.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/collector"
	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

const (
	HeaderContentType = "content_type"
	HeaderService     = "service"

	contentTypeJSON = "application/json"
)

var (
	// ErrInvalidBrokers indicates no brokers were provided.
	ErrInvalidBrokers = errors.New("at least one broker address is required")

	// ErrInvalidTopic indicates the topic is empty.
	ErrInvalidTopic = errors.New("topic cannot be empty")
)

var _ collector.Transport = (*Transport)(nil)

// Writer is the subset of *kafka.Writer used by the transport.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type config struct {
	batchSize    int
	batchTimeout time.Duration
	writeTimeout time.Duration
	requiredAcks kafka.RequiredAcks
	compression  kafka.Compression
	autoCreate   bool
	mechanism    sasl.Mechanism
	tlsConfig    *tls.Config
	service      string
}

// Option configures the Kafka transport.
type Option func(*config) error

// WithBatchTimeout bounds how long the writer waits to fill a batch.
func WithBatchTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout > 0 {
			c.batchTimeout = timeout
		}
		return nil
	}
}

// WithRequiredAcks sets the acknowledgement level. Defaults to all replicas.
func WithRequiredAcks(acks kafka.RequiredAcks) Option {
	return func(c *config) error {
		c.requiredAcks = acks
		return nil
	}
}

// WithCompression sets the message compression codec.
func WithCompression(codec kafka.Compression) Option {
	return func(c *config) error {
		c.compression = codec
		return nil
	}
}

// WithAutoTopicCreation lets the writer create a missing topic.
func WithAutoTopicCreation() Option {
	return func(c *config) error {
		c.autoCreate = true
		return nil
	}
}

// WithService adds the service header to every message.
func WithService(service string) Option {
	return func(c *config) error {
		c.service = service
		return nil
	}
}

// WithPlainAuth enables SASL/PLAIN. Use it together with WithTLS outside of
// local environments.
func WithPlainAuth(username, password string) Option {
	return func(c *config) error {
		c.mechanism = plain.Mechanism{Username: username, Password: password}
		return nil
	}
}

// WithScramAuth enables SASL/SCRAM-SHA-512.
func WithScramAuth(username, password string) Option {
	return func(c *config) error {
		mechanism, err := scram.Mechanism(scram.SHA512, username, password)
		if err != nil {
			return fmt.Errorf("failed to create scram mechanism: %w", err)
		}
		c.mechanism = mechanism
		return nil
	}
}

// WithTLS enables TLS. A nil config uses TLS 1.2 with system roots.
func WithTLS(tlsConfig *tls.Config) Option {
	return func(c *config) error {
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		c.tlsConfig = tlsConfig
		return nil
	}
}

// Transport writes span records to Kafka.
type Transport struct {
	writer  Writer
	service string
}

// New creates a transport backed by a kafka-go writer for topic.
func New(brokers []string, topic string, opts ...Option) (*Transport, error) {
	if len(brokers) == 0 {
		return nil, ErrInvalidBrokers
	}
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	cfg := &config{
		batchSize:    100,
		batchTimeout: 10 * time.Millisecond,
		writeTimeout: 10 * time.Second,
		requiredAcks: kafka.RequireAll,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.batchSize,
		BatchTimeout:           cfg.batchTimeout,
		WriteTimeout:           cfg.writeTimeout,
		RequiredAcks:           cfg.requiredAcks,
		Compression:            cfg.compression,
		AllowAutoTopicCreation: cfg.autoCreate,
		// retries belong to the collector
		MaxAttempts: 1,
	}

	if cfg.mechanism != nil || cfg.tlsConfig != nil {
		writer.Transport = &kafka.Transport{
			SASL: cfg.mechanism,
			TLS:  cfg.tlsConfig,
		}
	}

	return &Transport{writer: writer, service: cfg.service}, nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(writer Writer, service string) *Transport {
	return &Transport{writer: writer, service: service}
}

// Send writes one message per record in a single call.
func (t *Transport) Send(ctx context.Context, records []instana.Record) error {
	if len(records) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(records))
	for _, record := range records {
		msg, err := t.message(record)
		if err != nil {
			return backoff.Permanent(err)
		}
		messages = append(messages, msg)
	}

	if err := t.writer.WriteMessages(ctx, messages...); err != nil {
		if permanent(err) {
			return backoff.Permanent(fmt.Errorf("failed to write spans: %w", err))
		}
		return fmt.Errorf("failed to write spans: %w", err)
	}
	return nil
}

func (t *Transport) message(record instana.Record) (kafka.Message, error) {
	value, err := sonic.Marshal(record)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode span %s: %w", record.SpanID, err)
	}

	headers := []kafka.Header{{Key: HeaderContentType, Value: []byte(contentTypeJSON)}}

	service := record.Service
	if service == "" {
		service = t.service
	}
	if service != "" {
		headers = append(headers, kafka.Header{Key: HeaderService, Value: []byte(service)})
	}

	return kafka.Message{
		Key:     []byte(record.TraceID),
		Value:   value,
		Headers: headers,
	}, nil
}

// permanent reports broker errors that will not go away by retrying.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// WriteErrors has no Unwrap; it holds one entry per message, nil on success.
	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) {
		failed := 0
		for _, e := range werrs {
			if e == nil {
				continue
			}
			if !permanent(e) {
				return false
			}
			failed++
		}
		return failed > 0
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return !kerr.Temporary()
	}
	return false
}

// Close flushes pending writes and closes the writer.
func (t *Transport) Close() error {
	return t.writer.Close()
}
