package mcpfleet

import (
	"log/slog"
	"time"

	"github.com/mcpfleet/mcpfleet/internal/config"
	"github.com/mcpfleet/mcpfleet/internal/engine"
)

// Option configures a Manager using the functional options pattern.
type Option func(*managerOptions)

type managerOptions struct {
	logger           *slog.Logger
	connector        engine.Connector
	defaultTimeout   time.Duration
	maxConcurrency   int
	handshakeTimeout time.Duration
	gracePeriod      time.Duration
}

func applyOptions(opts []Option) *managerOptions {
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for operational output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithConnector injects a custom engine connector, replacing the
// default subprocess-spawning one. Intended for tests and embedders
// with their own transport.
func WithConnector(connector Connector) Option {
	return func(o *managerOptions) {
		o.connector = connector
	}
}

// WithDefaultTimeout overrides the configured global tool call timeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *managerOptions) {
		o.defaultTimeout = timeout
	}
}

// WithMaxConcurrency overrides the configured global concurrency limit.
func WithMaxConcurrency(limit int) Option {
	return func(o *managerOptions) {
		o.maxConcurrency = limit
	}
}

// WithHandshakeTimeout overrides how long a server may take to spawn
// and complete its initial handshake.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *managerOptions) {
		o.handshakeTimeout = timeout
	}
}

// WithGracePeriod overrides the drain and voluntary-exit grace period.
func WithGracePeriod(grace time.Duration) Option {
	return func(o *managerOptions) {
		o.gracePeriod = grace
	}
}

// apply folds option overrides into the configuration defaults.
func (o *managerOptions) apply(cfg *config.Config) {
	if o.defaultTimeout > 0 {
		cfg.Defaults.Timeout = config.Duration(o.defaultTimeout)
	}

	if o.maxConcurrency > 0 {
		cfg.Defaults.MaxConcurrency = o.maxConcurrency
	}

	if o.handshakeTimeout > 0 {
		cfg.Defaults.HandshakeTimeout = config.Duration(o.handshakeTimeout)
	}

	if o.gracePeriod > 0 {
		cfg.Defaults.GracePeriod = config.Duration(o.gracePeriod)
	}
}
