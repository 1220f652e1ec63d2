package dispatch

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpfleet/mcpfleet/internal/engine"
)

// FailureKind classifies why a tool call did not produce a success
// payload. Every failure path yields exactly one kind.
type FailureKind string

const (
	// FailureNotFound means the request referenced an unknown server name.
	FailureNotFound FailureKind = "not_found"
	// FailureServerUnavailable means the target handle exists but is not ready.
	FailureServerUnavailable FailureKind = "server_unavailable"
	// FailureTimeout means slot wait plus execution exceeded the request timeout.
	FailureTimeout FailureKind = "timeout"
	// FailureShuttingDown means the call was rejected or cancelled by a drain.
	FailureShuttingDown FailureKind = "shutting_down"
	// FailureInvalidArguments means the payload failed schema validation.
	FailureInvalidArguments FailureKind = "invalid_arguments"
	// FailureToolError means the engine or the tool itself reported an error.
	FailureToolError FailureKind = "tool_error"
)

// ToolCallRequest describes one tool invocation.
type ToolCallRequest struct {
	// Server is the target server name.
	Server string

	// Tool is the tool name on that server.
	Tool string

	// Arguments is the structured argument payload.
	Arguments map[string]any

	// Timeout bounds slot wait plus execution. Zero means the server's
	// configured timeout (or the global default).
	Timeout time.Duration
}

// Failure describes why a call failed, by kind plus a human-readable
// message.
type Failure struct {
	Kind    FailureKind
	Message string
}

// ToolCallResult is the outcome of one invocation: a success payload or
// a failure descriptor, never both absent.
type ToolCallResult struct {
	// CallID is the unique correlation identifier assigned to this call.
	CallID string

	// Server and Tool echo the request target.
	Server string
	Tool   string

	// Duration measures slot wait plus execution.
	Duration time.Duration

	// Payload is the engine result. Nil on failure, except for
	// tool-declared errors where the raw payload is preserved alongside
	// the failure descriptor.
	Payload *mcp.CallToolResult

	// Failure is nil on success.
	Failure *Failure
}

// OK reports whether the call succeeded.
func (r *ToolCallResult) OK() bool {
	return r.Failure == nil
}

// Text flattens the payload's text content, empty on failure.
func (r *ToolCallResult) Text() string {
	return engine.Text(r.Payload)
}

func (r *ToolCallResult) fail(kind FailureKind, message string) *ToolCallResult {
	r.Failure = &Failure{Kind: kind, Message: message}

	return r
}
