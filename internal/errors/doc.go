// Package errors defines error types for the fleet manager.
//
// This package provides structured error types that wrap the failure
// scenarios of launching, dispatching to, and stopping MCP server
// subprocesses. All error types support error unwrapping and can be
// checked using errors.Is, errors.As, and errors.AsType.
package errors
