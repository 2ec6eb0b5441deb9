// Package acceptor sends span batches over HTTP, either to the local host agent or
// to a serverless acceptor endpoint.
package acceptor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/collector"
	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/gzip"
)

const (
	DefaultTimeout = 10 * time.Second

	headerAgentKey = "X-Instana-Key"
	headerTime     = "X-Instana-Time"

	agentTracesPath = "/com.instana.plugin.golang/traces."
	bundlePath      = "/bundle"
)

var _ collector.Transport = (*Transport)(nil)

// HTTPClient is the subset of *http.Client used by the transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-2xx answer from the agent or acceptor.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("instana acceptor responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("instana acceptor responded with status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Transport posts records to the Instana host agent or serverless acceptor.
type Transport struct {
	client     HTTPClient
	url        string
	agentKey   string
	serverless bool
	compress   bool
	now        func() time.Time
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client HTTPClient) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithCompression toggles gzip request bodies. Enabled by default.
func WithCompression(enabled bool) Option {
	return func(t *Transport) {
		t.compress = enabled
	}
}

// New builds a transport for cfg. A configured endpoint URL selects the serverless
// bundle format; otherwise records go to the host agent traces endpoint of this pid.
func New(cfg *instana.Config, opts ...Option) (*Transport, error) {
	if cfg == nil {
		cfg = instana.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Transport{
		client:     &http.Client{Timeout: DefaultTimeout},
		agentKey:   cfg.AgentKey,
		serverless: cfg.Serverless(),
		compress:   true,
		now:        time.Now,
	}

	if t.serverless {
		t.url = strings.TrimRight(cfg.EndpointURL, "/") + bundlePath
	} else {
		t.url = fmt.Sprintf("http://%s:%d%s%d", cfg.AgentHost, cfg.AgentPort, agentTracesPath, os.Getpid())
	}

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// URL returns the address batches are posted to.
func (t *Transport) URL() string {
	return t.url
}

// Send posts one batch. Client errors and encoding failures are wrapped with
// backoff.Permanent so the collector does not retry them.
func (t *Transport) Send(ctx context.Context, records []instana.Record) error {
	body, err := t.encode(records)
	if err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTime, strconv.FormatInt(t.now().UnixMilli(), 10))
	if t.agentKey != "" {
		req.Header.Set(headerAgentKey, t.agentKey)
	}
	if t.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("failed to send spans: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	if statusErr.Retryable() {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

func (t *Transport) encode(records []instana.Record) ([]byte, error) {
	var payload any = records
	if t.serverless {
		payload = instana.Bundle{Spans: records}
	}

	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode spans: %w", err)
	}
	if !t.compress {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress spans: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress spans: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases idle connections of the default client.
func (t *Transport) Close() error {
	if c, ok := t.client.(*http.Client); ok {
		c.CloseIdleConnections()
	}
	return nil
}
