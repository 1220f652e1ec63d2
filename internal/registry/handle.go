package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mcpfleet/mcpfleet/internal/config"
	"github.com/mcpfleet/mcpfleet/internal/engine"
	"github.com/mcpfleet/mcpfleet/internal/errors"
)

// State is the lifecycle state of a server handle.
//
// Valid sequences are starting → ready → stopped and starting → failed.
// A handle is never reused after reaching stopped or failed.
type State int32

const (
	// StateStarting means the subprocess is spawning or handshaking.
	StateStarting State = iota
	// StateReady means the handshake succeeded and calls may be dispatched.
	StateReady
	// StateFailed means the launch failed or the subprocess crashed.
	StateFailed
	// StateStopped means the handle was terminated by the registry.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Tool is one entry of a server's cached tool catalog, captured at
// handshake time.
type Tool struct {
	Name        string
	Description string

	// Schema is the resolved input schema, nil when the server declares
	// none or the declared schema failed to resolve.
	Schema *jsonschema.Resolved
}

// Handle is the runtime binding of a ServerSpec to a live subprocess.
// It is created and terminated exclusively by the Registry; every other
// component holds it as a read-only reference.
type Handle struct {
	spec    *config.ServerSpec
	session engine.Session
	pid     int

	state atomic.Int32

	toolsMu sync.RWMutex
	tools   map[string]*Tool
}

func newHandle(spec *config.ServerSpec) *Handle {
	h := &Handle{spec: spec}
	h.state.Store(int32(StateStarting))

	return h
}

// Spec returns the immutable launch spec.
func (h *Handle) Spec() *config.ServerSpec {
	return h.spec
}

// Name returns the server name.
func (h *Handle) Name() string {
	return h.spec.Name
}

// PID returns the subprocess identifier, 0 before the process spawned.
func (h *Handle) PID() int {
	return h.pid
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// transition moves the handle from one state to another atomically.
// Returns false when the handle is no longer in the from state, which
// makes double stops and crash-vs-stop races resolve cleanly.
func (h *Handle) transition(from, to State) bool {
	return h.state.CompareAndSwap(int32(from), int32(to))
}

// Session exposes the engine session for dispatching. Only valid while
// the handle is ready.
func (h *Handle) Session() engine.Session {
	return h.session
}

// Tool looks up one cached catalog entry by name.
func (h *Handle) Tool(name string) (*Tool, bool) {
	h.toolsMu.RLock()
	defer h.toolsMu.RUnlock()

	t, ok := h.tools[name]

	return t, ok
}

// Tools returns the cached catalog sorted by tool name.
func (h *Handle) Tools() []*Tool {
	h.toolsMu.RLock()
	defer h.toolsMu.RUnlock()

	out := make([]*Tool, 0, len(h.tools))
	for _, t := range h.tools {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// ToolCount returns the number of cached catalog entries.
func (h *Handle) ToolCount() int {
	h.toolsMu.RLock()
	defer h.toolsMu.RUnlock()

	return len(h.tools)
}

func (h *Handle) setTools(tools map[string]*Tool) {
	h.toolsMu.Lock()
	defer h.toolsMu.Unlock()

	h.tools = tools
}

// Ping performs a protocol round trip against a ready handle.
func (h *Handle) Ping(ctx context.Context) error {
	if state := h.State(); state != StateReady {
		return &errors.ServerUnavailableError{Server: h.Name(), State: state.String()}
	}

	return h.session.Ping(ctx)
}

// stop terminates the subprocess: close the session, wait up to the
// grace period for voluntary exit, then force-kill. Only the first call
// on a ready handle does any work; later calls are no-ops.
func (h *Handle) stop(ctx context.Context, log *slog.Logger, grace time.Duration) {
	if !h.transition(StateReady, StateStopped) {
		log.Debug("Stop is a no-op", "server", h.Name(), "state", h.State().String())

		return
	}

	log.Info("Stopping server", "server", h.Name(), "pid", h.pid)

	closed := make(chan error, 1)

	go func() {
		closed <- h.session.Close()
	}()

	select {
	case err := <-closed:
		if err != nil {
			log.Debug("Session close reported error", "server", h.Name(), "error", err)
		}

		log.Info("Server exited voluntarily", "server", h.Name())

	case <-time.After(grace):
		log.Warn("Grace period elapsed, force-killing server", "server", h.Name(), "grace", grace)

		if err := h.session.Kill(); err != nil {
			log.Error("Force kill failed", "server", h.Name(), "error", err)
		}

	case <-ctx.Done():
		log.Warn("Stop cancelled, force-killing server", "server", h.Name())

		if err := h.session.Kill(); err != nil {
			log.Error("Force kill failed", "server", h.Name(), "error", err)
		}
	}
}
