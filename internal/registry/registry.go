package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcpfleet/mcpfleet/internal/config"
	"github.com/mcpfleet/mcpfleet/internal/engine"
	"github.com/mcpfleet/mcpfleet/internal/errors"
)

// Info is a read-only snapshot of one handle, for status listings.
type Info struct {
	Name      string
	State     State
	PID       int
	ToolCount int
}

// Registry launches, tracks, and terminates MCP server subprocesses.
// It is the exclusive writer of the handle table; the dispatcher and
// shutdown coordinator only read it.
type Registry struct {
	log       *slog.Logger
	connector engine.Connector

	handshakeTimeout time.Duration
	gracePeriod      time.Duration

	mu      sync.RWMutex
	handles map[string]*Handle
}

// New creates an empty registry.
func New(log *slog.Logger, connector engine.Connector, handshakeTimeout, gracePeriod time.Duration) *Registry {
	return &Registry{
		log:              log.With("component", "registry"),
		connector:        connector,
		handshakeTimeout: handshakeTimeout,
		gracePeriod:      gracePeriod,
		handles:          make(map[string]*Handle, 8),
	}
}

// Start spawns the configured command, runs the MCP initialize
// handshake, and caches the server's tool catalog. On success the
// handle is ready; on any failure it is failed and a LaunchError is
// returned. Other servers are unaffected either way.
func (r *Registry) Start(ctx context.Context, spec *config.ServerSpec) (*Handle, error) {
	handle := newHandle(spec)

	r.mu.Lock()

	if _, exists := r.handles[spec.Name]; exists {
		r.mu.Unlock()

		return nil, &errors.LaunchError{Server: spec.Name, Err: errors.ErrDuplicateServer}
	}

	r.handles[spec.Name] = handle
	r.mu.Unlock()

	r.log.Info("Starting server", "server", spec.Name, "command", spec.Command)

	hctx, cancel := context.WithTimeout(ctx, r.handshakeTimeout)
	defer cancel()

	session, err := r.connector.Connect(hctx, spec)
	if err != nil {
		handle.transition(StateStarting, StateFailed)
		r.log.Error("Server launch failed", "server", spec.Name, "error", err)

		return handle, &errors.LaunchError{Server: spec.Name, Err: err}
	}

	tools, err := session.ListTools(hctx)
	if err != nil {
		handle.transition(StateStarting, StateFailed)

		_ = session.Kill()

		r.log.Error("Server handshake failed", "server", spec.Name, "error", err)

		return handle, &errors.LaunchError{Server: spec.Name, Err: fmt.Errorf("handshake: %w", err)}
	}

	catalog := make(map[string]*Tool, len(tools))

	for _, t := range tools {
		entry := &Tool{Name: t.Name, Description: t.Description}

		if t.InputSchema != nil {
			resolved, rerr := t.InputSchema.Resolve(nil)
			if rerr != nil {
				r.log.Warn("Tool schema failed to resolve, skipping validation",
					"server", spec.Name, "tool", t.Name, "error", rerr)
			} else {
				entry.Schema = resolved
			}
		}

		catalog[t.Name] = entry
	}

	handle.session = session
	handle.pid = session.PID()
	handle.setTools(catalog)
	handle.transition(StateStarting, StateReady)

	r.log.Info("Server ready", "server", spec.Name, "pid", handle.pid, "tools", len(catalog))

	// Crash detection: a subprocess that exits while ready flips the
	// handle to failed. The failure is reported on the next invoke
	// against this server, never pushed.
	go func() {
		err := session.Wait()

		if handle.transition(StateReady, StateFailed) {
			r.log.Warn("Server exited unexpectedly", "server", spec.Name, "error", err)
		}
	}()

	return handle, nil
}

// Get looks up a handle by server name.
func (r *Registry) Get(name string) (*Handle, error) {
	r.mu.RLock()
	handle, ok := r.handles[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &errors.NotFoundError{Server: name}
	}

	return handle, nil
}

// Stop terminates one server: termination request, grace period,
// force kill. Stopping an already stopped or failed handle is a no-op.
func (r *Registry) Stop(ctx context.Context, name string) error {
	handle, err := r.Get(name)
	if err != nil {
		return err
	}

	handle.stop(ctx, r.log, r.gracePeriod)

	return nil
}

// StopAll terminates every handle concurrently. Handles are independent
// so no ordering applies. Returns after all terminations complete.
func (r *Registry) StopAll(ctx context.Context) {
	var eg errgroup.Group

	for _, handle := range r.snapshot() {
		eg.Go(func() error {
			handle.stop(ctx, r.log, r.gracePeriod)

			return nil
		})
	}

	// Stops never error; the group is just the join point.
	_ = eg.Wait()

	r.log.Info("All servers stopped")
}

// Infos returns a snapshot of every handle, sorted by server name.
func (r *Registry) Infos() []Info {
	handles := r.snapshot()

	infos := make([]Info, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, Info{
			Name:      h.Name(),
			State:     h.State(),
			PID:       h.PID(),
			ToolCount: h.ToolCount(),
		})
	}

	return infos
}

// snapshot copies the handle table under the read lock, sorted by name.
func (r *Registry) snapshot() []*Handle {
	r.mu.RLock()

	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}

	r.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i].Name() < handles[j].Name() })

	return handles
}
