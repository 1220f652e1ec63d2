package mcpfleet

import (
	"github.com/mcpfleet/mcpfleet/internal/config"
	"github.com/mcpfleet/mcpfleet/internal/dispatch"
	"github.com/mcpfleet/mcpfleet/internal/engine"
	"github.com/mcpfleet/mcpfleet/internal/registry"
	"github.com/mcpfleet/mcpfleet/internal/shutdown"
)

// Re-export configuration types from internal packages.

// Config is the full server configuration handed to the manager.
type Config = config.Config

// ServerSpec describes how to launch one MCP server subprocess.
type ServerSpec = config.ServerSpec

// Defaults carries the global timeout, concurrency, handshake, and
// grace period knobs.
type Defaults = config.Defaults

// Duration unmarshals from bare seconds or a Go duration string.
type Duration = config.Duration

// LoadConfig reads, parses, and validates a configuration file
// (JSON, or YAML by .yaml/.yml extension).
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewConfig builds a configuration programmatically from specs.
func NewConfig(specs []*ServerSpec) (*Config, error) {
	return config.New(specs)
}

// Re-export dispatch types.

// ToolCallRequest describes one tool invocation.
type ToolCallRequest = dispatch.ToolCallRequest

// ToolCallResult is the outcome of one invocation.
type ToolCallResult = dispatch.ToolCallResult

// Failure describes why a call failed.
type Failure = dispatch.Failure

// FailureKind classifies tool call failures.
type FailureKind = dispatch.FailureKind

// Failure kinds, one per failure path.
const (
	FailureNotFound          = dispatch.FailureNotFound
	FailureServerUnavailable = dispatch.FailureServerUnavailable
	FailureTimeout           = dispatch.FailureTimeout
	FailureShuttingDown      = dispatch.FailureShuttingDown
	FailureInvalidArguments  = dispatch.FailureInvalidArguments
	FailureToolError         = dispatch.FailureToolError
)

// Re-export registry types.

// ServerInfo is a read-only snapshot of one server handle.
type ServerInfo = registry.Info

// ServerState is the lifecycle state of a server handle.
type ServerState = registry.State

// Server handle states.
const (
	ServerStarting = registry.StateStarting
	ServerReady    = registry.StateReady
	ServerFailed   = registry.StateFailed
	ServerStopped  = registry.StateStopped
)

// Tool is one entry of a server's cached tool catalog.
type Tool = registry.Tool

// Re-export the engine boundary for custom connector injection.

// Connector materializes engine sessions from server specs.
// Inject a custom one with WithConnector, e.g. for tests.
type Connector = engine.Connector

// Session is a live engine-level connection to one server subprocess.
type Session = engine.Session

// Re-export shutdown types.

// ShutdownState is the coordinator's lifecycle state.
type ShutdownState = shutdown.State

// Shutdown coordinator states.
const (
	ShutdownRunning  = shutdown.StateRunning
	ShutdownDraining = shutdown.StateDraining
	ShutdownStopped  = shutdown.StateStopped
)
