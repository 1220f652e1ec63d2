// Package enginetest provides fake engine sessions and connectors for
// tests, so registry, dispatcher, and manager behavior can be exercised
// without spawning subprocesses.
package enginetest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpfleet/mcpfleet/internal/config"
	"github.com/mcpfleet/mcpfleet/internal/engine"
)

// ErrKilled is the wait error reported after a force kill.
var ErrKilled = errors.New("killed")

// DiscardLogger returns a logger that drops everything, for tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Compile-time verification against the engine interfaces.
var (
	_ engine.Session   = (*FakeSession)(nil)
	_ engine.Connector = (*FakeConnector)(nil)
)

// FakeSession is a controllable in-memory engine.Session.
//
// The zero value is not usable; create sessions with NewFakeSession.
type FakeSession struct {
	// Tools is the catalog returned by ListTools.
	Tools []*mcp.Tool

	// ListErr, when set, fails ListTools (handshake failure).
	ListErr error

	// PingErr, when set, fails Ping.
	PingErr error

	// CallFunc overrides CallTool. The default returns a text "ok".
	CallFunc func(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error)

	// CloseDelay simulates a subprocess that takes this long to exit
	// voluntarily after the termination request.
	CloseDelay time.Duration

	// PIDValue is returned by PID.
	PIDValue int

	killed atomic.Bool

	mu      sync.Mutex
	waitErr error
	once    sync.Once
	done    chan struct{}
}

// NewFakeSession creates a live fake session exposing the given tools.
func NewFakeSession(tools ...*mcp.Tool) *FakeSession {
	return &FakeSession{
		Tools:    tools,
		PIDValue: 4242,
		done:     make(chan struct{}),
	}
}

// terminate ends the session exactly once with the given wait error.
func (s *FakeSession) terminate(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()

		close(s.done)
	})
}

// Crash simulates the subprocess exiting unexpectedly.
func (s *FakeSession) Crash(err error) {
	s.terminate(err)
}

// Killed reports whether Kill was called.
func (s *FakeSession) Killed() bool {
	return s.killed.Load()
}

// CallTool implements engine.Session.
func (s *FakeSession) CallTool(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	if s.CallFunc != nil {
		return s.CallFunc(ctx, tool, args)
	}

	return TextResult("ok"), nil
}

// ListTools implements engine.Session.
func (s *FakeSession) ListTools(_ context.Context) ([]*mcp.Tool, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	return s.Tools, nil
}

// Ping implements engine.Session.
func (s *FakeSession) Ping(_ context.Context) error {
	return s.PingErr
}

// Close implements engine.Session: the termination request. The session
// exits voluntarily after CloseDelay unless killed first.
func (s *FakeSession) Close() error {
	if s.CloseDelay > 0 {
		timer := time.NewTimer(s.CloseDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-s.done:
		}
	}

	s.terminate(nil)

	return nil
}

// Wait implements engine.Session.
func (s *FakeSession) Wait() error {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waitErr
}

// Kill implements engine.Session.
func (s *FakeSession) Kill() error {
	s.killed.Store(true)
	s.terminate(ErrKilled)

	return nil
}

// PID implements engine.Session.
func (s *FakeSession) PID() int {
	return s.PIDValue
}

// FakeConnector hands out fake sessions by server name.
type FakeConnector struct {
	mu sync.Mutex

	// Sessions maps server name to the session Connect returns. Servers
	// without an entry get a fresh default session.
	Sessions map[string]*FakeSession

	// Errs maps server name to a Connect (spawn) failure.
	Errs map[string]error

	// ConnectDelay stalls Connect, for handshake timeout tests.
	ConnectDelay time.Duration
}

// NewFakeConnector creates an empty connector.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		Sessions: make(map[string]*FakeSession),
		Errs:     make(map[string]error),
	}
}

// Add registers the session Connect returns for a server name.
func (c *FakeConnector) Add(name string, session *FakeSession) *FakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Sessions[name] = session

	return session
}

// Fail makes Connect fail for a server name.
func (c *FakeConnector) Fail(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Errs[name] = err
}

// Connect implements engine.Connector.
func (c *FakeConnector) Connect(ctx context.Context, spec *config.ServerSpec) (engine.Session, error) {
	if c.ConnectDelay > 0 {
		timer := time.NewTimer(c.ConnectDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.Errs[spec.Name]; ok {
		return nil, err
	}

	if session, ok := c.Sessions[spec.Name]; ok {
		return session, nil
	}

	session := NewFakeSession()
	c.Sessions[spec.Name] = session

	return session, nil
}

// TextResult builds a success payload with one text block.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// ErrorResult builds a tool-declared error payload.
func ErrorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// SimpleTool builds a tool without an input schema.
func SimpleTool(name string) *mcp.Tool {
	return &mcp.Tool{Name: name, Description: name + " tool"}
}

// SchemaTool builds a tool whose input schema requires one string
// property.
func SchemaTool(name, property string) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: name + " tool",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				property: {Type: "string"},
			},
			Required:             []string{property},
			AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
		},
	}
}
