package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpfleet/mcpfleet/internal/config"
)

// clientName and clientVersion identify this manager to MCP servers
// during the initialize handshake.
const (
	clientName    = "mcpfleet"
	clientVersion = "v1.0.0"
)

// Session is a live engine-level connection to one MCP server
// subprocess. Implementations must be safe for concurrent use.
type Session interface {
	// CallTool submits a tool name and argument payload and blocks for
	// the correlated result, honoring ctx for cancellation.
	CallTool(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error)

	// ListTools returns the tools the server declares.
	ListTools(ctx context.Context) ([]*mcp.Tool, error)

	// Ping performs a protocol-level round trip.
	Ping(ctx context.Context) error

	// Close asks the server to terminate voluntarily by closing the
	// connection.
	Close() error

	// Wait blocks until the connection ends, however that happens.
	Wait() error

	// Kill force-terminates the subprocess. Best effort; used only
	// after the voluntary grace period elapses.
	Kill() error

	// PID returns the subprocess identifier, or 0 when not applicable.
	PID() int
}

// Connector materializes Sessions from server specs. The production
// implementation spawns subprocesses; tests inject mocks.
type Connector interface {
	Connect(ctx context.Context, spec *config.ServerSpec) (Session, error)
}

// Compile-time verification of the production implementations.
var (
	_ Connector = (*SDKConnector)(nil)
	_ Session   = (*sdkSession)(nil)
)

// SDKConnector connects to servers by spawning their configured command
// and speaking MCP over stdio via the official SDK's CommandTransport.
type SDKConnector struct {
	log *slog.Logger
}

// NewSDKConnector creates the production connector.
func NewSDKConnector(log *slog.Logger) *SDKConnector {
	return &SDKConnector{
		log: log.With("component", "engine"),
	}
}

// Connect spawns the spec's command and completes the MCP initialize
// handshake. The returned session owns the connection but not the
// subprocess lifecycle policy; stopping and force-killing are driven by
// the registry.
func (c *SDKConnector) Connect(ctx context.Context, spec *config.ServerSpec) (Session, error) {
	//nolint:gosec // G204: launching configured server commands is the point
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = buildEnv(spec.Env)
	cmd.Dir = spec.Cwd

	c.log.Debug("Connecting to server", "server", spec.Name, "command", spec.Command, "args", spec.Args)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %q: %w", spec.Name, err)
	}

	c.log.Info("Server session established", "server", spec.Name, "pid", pidOf(cmd))

	return &sdkSession{
		log:     c.log.With("server", spec.Name),
		session: session,
		cmd:     cmd,
	}, nil
}

// sdkSession adapts an SDK ClientSession to the Session interface.
type sdkSession struct {
	log     *slog.Logger
	session *mcp.ClientSession
	cmd     *exec.Cmd
}

// CallTool implements Session.
func (s *sdkSession) CallTool(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	return s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
}

// ListTools implements Session.
func (s *sdkSession) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	res, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	return res.Tools, nil
}

// Ping implements Session.
func (s *sdkSession) Ping(ctx context.Context) error {
	return s.session.Ping(ctx, nil)
}

// Close implements Session.
func (s *sdkSession) Close() error {
	return s.session.Close()
}

// Wait implements Session.
func (s *sdkSession) Wait() error {
	return s.session.Wait()
}

// Kill implements Session.
func (s *sdkSession) Kill() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	s.log.Warn("Force-killing server subprocess", "pid", s.cmd.Process.Pid)

	return s.cmd.Process.Kill()
}

// PID implements Session.
func (s *sdkSession) PID() int {
	return pidOf(s.cmd)
}

func pidOf(cmd *exec.Cmd) int {
	if cmd == nil || cmd.Process == nil {
		return 0
	}

	return cmd.Process.Pid
}

// buildEnv merges extra variables over the parent environment.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for key, value := range extra {
		env = append(env, key+"="+value)
	}

	return env
}

// Text flattens a tool result's text content into a single string.
// Non-text content blocks are skipped.
func Text(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}

	var sb strings.Builder

	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}

			sb.WriteString(text.Text)
		}
	}

	return sb.String()
}
