package instana

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultPollInterval is the wait between two queue depth checks.
	DefaultPollInterval = 5 * time.Second

	// DefaultDrainTimeout bounds how long an export waits for the queue to drain.
	DefaultDrainTimeout = 30 * time.Second

	// DefaultAgentHost is the host agent address used when no endpoint is set.
	DefaultAgentHost = "localhost"

	// DefaultAgentPort is the host agent port.
	DefaultAgentPort = 42699
)

// Config holds the exporter and collector settings. It is read once when the
// components are built and never written back to the process environment.
type Config struct {
	// ServiceName is stamped on every record, overriding the service.name
	// resource attribute.
	ServiceName string `envconfig:"INSTANA_SERVICE_NAME"`

	// AgentKey authenticates against the serverless acceptor.
	AgentKey string `envconfig:"INSTANA_AGENT_KEY"`

	// EndpointURL is the serverless acceptor. When empty, spans go to the host agent.
	EndpointURL string `envconfig:"INSTANA_ENDPOINT_URL"`

	AgentHost string `envconfig:"INSTANA_AGENT_HOST" default:"localhost"`
	AgentPort int    `envconfig:"INSTANA_AGENT_PORT" default:"42699"`

	// EntityID replaces the generated process fingerprint.
	EntityID      string `envconfig:"INSTANA_ENTITY_ID"`
	CloudProvider string `envconfig:"INSTANA_CLOUD_PROVIDER"`

	PollInterval time.Duration `envconfig:"INSTANA_EXPORT_POLL_INTERVAL" default:"5s"`
	DrainTimeout time.Duration `envconfig:"INSTANA_EXPORT_DRAIN_TIMEOUT" default:"30s"`
}

// DefaultConfig returns a host agent configuration with default timings.
func DefaultConfig() *Config {
	return &Config{
		AgentHost:    DefaultAgentHost,
		AgentPort:    DefaultAgentPort,
		PollInterval: DefaultPollInterval,
		DrainTimeout: DefaultDrainTimeout,
	}
}

// LoadConfig reads INSTANA_* environment variables and overlays every non-zero
// field of explicit on top of them, so explicit parameters take precedence.
func LoadConfig(explicit Config) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load instana config: %w", err)
	}

	cfg.merge(explicit)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) merge(explicit Config) {
	if explicit.ServiceName != "" {
		c.ServiceName = explicit.ServiceName
	}
	if explicit.AgentKey != "" {
		c.AgentKey = explicit.AgentKey
	}
	if explicit.EndpointURL != "" {
		c.EndpointURL = explicit.EndpointURL
	}
	if explicit.AgentHost != "" {
		c.AgentHost = explicit.AgentHost
	}
	if explicit.AgentPort != 0 {
		c.AgentPort = explicit.AgentPort
	}
	if explicit.EntityID != "" {
		c.EntityID = explicit.EntityID
	}
	if explicit.CloudProvider != "" {
		c.CloudProvider = explicit.CloudProvider
	}
	if explicit.PollInterval != 0 {
		c.PollInterval = explicit.PollInterval
	}
	if explicit.DrainTimeout != 0 {
		c.DrainTimeout = explicit.DrainTimeout
	}
}

// Serverless reports whether spans are sent to a serverless acceptor.
func (c *Config) Serverless() bool {
	return c.EndpointURL != ""
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("%w: drain timeout must be positive", ErrInvalidConfig)
	}

	if c.Serverless() {
		u, err := url.Parse(c.EndpointURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: endpoint url %q is not absolute", ErrInvalidConfig, c.EndpointURL)
		}
		if c.AgentKey == "" {
			return fmt.Errorf("%w: agent key is required with an endpoint url", ErrInvalidConfig)
		}
		return nil
	}

	if c.AgentHost == "" {
		return fmt.Errorf("%w: agent host cannot be empty", ErrInvalidConfig)
	}
	if c.AgentPort <= 0 || c.AgentPort > 65535 {
		return fmt.Errorf("%w: agent port %d out of range", ErrInvalidConfig, c.AgentPort)
	}
	return nil
}
