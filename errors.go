package mcpfleet

import "github.com/mcpfleet/mcpfleet/internal/errors"

// Re-export error types from internal package

// LaunchError indicates a server subprocess failed to start or failed
// its initial handshake. Fatal for that server only.
type LaunchError = errors.LaunchError

// NotFoundError indicates a request referenced an unknown server name.
type NotFoundError = errors.NotFoundError

// ServerUnavailableError indicates the target handle exists but is not ready.
type ServerUnavailableError = errors.ServerUnavailableError

// InvalidArgumentsError indicates a tool call payload failed schema validation.
type InvalidArgumentsError = errors.InvalidArgumentsError

// ConfigError indicates the configuration could not be loaded or validated.
type ConfigError = errors.ConfigError

// FleetError is the base interface for all fleet manager errors.
type FleetError = errors.FleetError

// Re-export sentinel errors from internal package.
var (
	// ErrCallTimeout indicates a tool call exceeded its allotted duration.
	ErrCallTimeout = errors.ErrCallTimeout

	// ErrShuttingDown indicates a call was rejected because the manager is draining.
	ErrShuttingDown = errors.ErrShuttingDown

	// ErrAlreadyStarted indicates the manager was started twice.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrNotStarted indicates an operation that requires a started manager.
	ErrNotStarted = errors.ErrNotStarted

	// ErrDuplicateServer indicates a server name was configured twice.
	ErrDuplicateServer = errors.ErrDuplicateServer
)
