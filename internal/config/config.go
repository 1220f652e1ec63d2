package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcpfleet/mcpfleet/internal/errors"
)

// Built-in defaults, used when the configuration file leaves the
// corresponding field unset.
const (
	// DefaultTimeout bounds slot wait plus execution of a single tool call.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxConcurrency is the global in-flight tool call limit.
	DefaultMaxConcurrency = 8

	// DefaultHandshakeTimeout bounds subprocess spawn plus MCP initialize
	// and the initial tool listing.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultGracePeriod is how long draining and voluntary subprocess
	// exit may take before being forced.
	DefaultGracePeriod = 5 * time.Second
)

// Environment overrides honored by Load. Both come from the original
// CLI's environment contract.
const (
	// EnvToolTimeout overrides the global tool call timeout, in seconds.
	EnvToolTimeout = "MCP_TOOL_TIMEOUT"

	// EnvMaxConcurrency overrides the global concurrency limit.
	EnvMaxConcurrency = "MCP_MAX_CONCURRENCY"
)

// ServerSpec describes how to launch one MCP server subprocess.
// Immutable once loaded from configuration.
type ServerSpec struct {
	// Name is the unique server key. Populated from the mcpServers map key.
	Name string `json:"-" yaml:"-"`

	// Command is the executable to run.
	Command string `json:"command" yaml:"command"`

	// Args are command-line arguments passed to the executable.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Env are additional environment variables for the subprocess,
	// merged over the parent process environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Cwd is the optional working directory for the subprocess.
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	// Timeout overrides the global tool call timeout for this server.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxConcurrency overrides the global concurrency limit for this
	// server. When set, calls to this server draw from a dedicated pool
	// instead of the global one.
	MaxConcurrency int `json:"maxConcurrency,omitempty" yaml:"maxConcurrency,omitempty"`
}

// Defaults carries the global knobs applied where a ServerSpec has no
// override of its own.
type Defaults struct {
	Timeout          Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxConcurrency   int      `json:"maxConcurrency,omitempty" yaml:"maxConcurrency,omitempty"`
	HandshakeTimeout Duration `json:"handshakeTimeout,omitempty" yaml:"handshakeTimeout,omitempty"`
	GracePeriod      Duration `json:"gracePeriod,omitempty" yaml:"gracePeriod,omitempty"`
}

// Config is the full server configuration handed to the manager.
type Config struct {
	Servers  map[string]*ServerSpec `json:"mcpServers" yaml:"mcpServers"`
	Defaults Defaults               `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Load reads, parses, and validates a configuration file. Files ending
// in .yaml or .yml are parsed as YAML; everything else as JSON.
// Environment overrides are applied after parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{Path: path, Err: err}
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, &errors.ConfigError{Path: path, Err: err}
	}

	return cfg, nil
}

// Parse decodes configuration bytes. The ext argument selects the
// format the way Load does; an empty ext means JSON.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	}

	cfg.applyBuiltins()
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New builds a Config programmatically from a set of specs, applying
// built-in defaults. Environment overrides are not applied; callers
// constructing configs in code set their own knobs.
func New(specs []*ServerSpec) (*Config, error) {
	cfg := &Config{Servers: make(map[string]*ServerSpec, len(specs))}

	for _, spec := range specs {
		if _, exists := cfg.Servers[spec.Name]; exists {
			return nil, &errors.ConfigError{Err: fmt.Errorf("%w: %q", errors.ErrDuplicateServer, spec.Name)}
		}

		cfg.Servers[spec.Name] = spec
	}

	cfg.applyBuiltins()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyBuiltins fills unset defaults and propagates map keys into
// ServerSpec.Name.
func (c *Config) applyBuiltins() {
	if c.Defaults.Timeout == 0 {
		c.Defaults.Timeout = Duration(DefaultTimeout)
	}

	if c.Defaults.MaxConcurrency == 0 {
		c.Defaults.MaxConcurrency = DefaultMaxConcurrency
	}

	if c.Defaults.HandshakeTimeout == 0 {
		c.Defaults.HandshakeTimeout = Duration(DefaultHandshakeTimeout)
	}

	if c.Defaults.GracePeriod == 0 {
		c.Defaults.GracePeriod = Duration(DefaultGracePeriod)
	}

	for name, spec := range c.Servers {
		if spec != nil {
			spec.Name = name
		}
	}
}

// applyEnv applies environment variable overrides to the global
// defaults. lookup is injectable for tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if raw, ok := lookup(EnvToolTimeout); ok {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			c.Defaults.Timeout = Duration(time.Duration(secs * float64(time.Second)))
		}
	}

	if raw, ok := lookup(EnvMaxConcurrency); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Defaults.MaxConcurrency = n
		}
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return &errors.ConfigError{Err: fmt.Errorf("no servers configured")}
	}

	for name, spec := range c.Servers {
		if spec == nil {
			return &errors.ConfigError{Err: fmt.Errorf("server %q: empty definition", name)}
		}

		if name == "" {
			return &errors.ConfigError{Err: fmt.Errorf("server name must not be empty")}
		}

		if strings.Contains(name, "/") {
			return &errors.ConfigError{Err: fmt.Errorf("server %q: name must not contain '/'", name)}
		}

		if spec.Command == "" {
			return &errors.ConfigError{Err: fmt.Errorf("server %q: command is required", name)}
		}

		if spec.MaxConcurrency < 0 {
			return &errors.ConfigError{Err: fmt.Errorf("server %q: maxConcurrency must not be negative", name)}
		}
	}

	if c.Defaults.MaxConcurrency < 1 {
		return &errors.ConfigError{Err: fmt.Errorf("defaults.maxConcurrency must be at least 1")}
	}

	return nil
}

// Names returns the configured server names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// TimeoutFor returns the effective tool call timeout for a spec:
// the per-server override when present, the global default otherwise.
func (c *Config) TimeoutFor(spec *ServerSpec) time.Duration {
	if spec != nil && spec.Timeout > 0 {
		return spec.Timeout.Std()
	}

	return c.Defaults.Timeout.Std()
}
