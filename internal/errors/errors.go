package errors

import (
	"errors"
	"fmt"
)

// FleetError is the base interface for all fleet manager errors.
type FleetError interface {
	error
	IsFleetError() bool
}

// Compile-time verification that all error types implement FleetError.
var (
	_ FleetError = (*LaunchError)(nil)
	_ FleetError = (*NotFoundError)(nil)
	_ FleetError = (*ServerUnavailableError)(nil)
	_ FleetError = (*InvalidArgumentsError)(nil)
	_ FleetError = (*ConfigError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrCallTimeout indicates a tool call did not complete within its
	// allotted duration (slot wait plus execution).
	ErrCallTimeout = errors.New("tool call timeout")

	// ErrShuttingDown indicates a call was rejected because the manager
	// is draining. Callers must not retry within the same process lifetime.
	ErrShuttingDown = errors.New("manager shutting down")

	// ErrAlreadyStarted indicates the manager was started twice.
	ErrAlreadyStarted = errors.New("manager already started")

	// ErrNotStarted indicates an operation that requires a started manager.
	ErrNotStarted = errors.New("manager not started")

	// ErrDuplicateServer indicates a server name was configured twice.
	ErrDuplicateServer = errors.New("duplicate server name")
)

// LaunchError indicates a server subprocess failed to start or failed
// its initial handshake. Fatal for that server only; other servers
// remain usable.
type LaunchError struct {
	Server string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch server %q: %v", e.Server, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsFleetError implements FleetError.
func (e *LaunchError) IsFleetError() bool { return true }

// NotFoundError indicates a request referenced an unknown server name.
// Caller error, not retried.
type NotFoundError struct {
	Server string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown server %q", e.Server)
}

// IsFleetError implements FleetError.
func (e *NotFoundError) IsFleetError() bool { return true }

// ServerUnavailableError indicates the target handle exists but is not
// ready (failed, stopped, or still starting). Surfaced to the caller,
// never retried automatically.
type ServerUnavailableError struct {
	Server string
	State  string
}

func (e *ServerUnavailableError) Error() string {
	return fmt.Sprintf("server %q unavailable (state %s)", e.Server, e.State)
}

// IsFleetError implements FleetError.
func (e *ServerUnavailableError) IsFleetError() bool { return true }

// InvalidArgumentsError indicates a tool call payload failed validation
// against the tool's declared input schema.
type InvalidArgumentsError struct {
	Server string
	Tool   string
	Err    error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s/%s: %v", e.Server, e.Tool, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error {
	return e.Err
}

// IsFleetError implements FleetError.
func (e *InvalidArgumentsError) IsFleetError() bool { return true }

// ConfigError indicates the server configuration file could not be
// loaded or failed validation.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}

	return fmt.Sprintf("invalid configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsFleetError implements FleetError.
func (e *ConfigError) IsFleetError() bool { return true }
