package mcpfleet

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcpfleet/mcpfleet/internal/dispatch"
	"github.com/mcpfleet/mcpfleet/internal/engine"
	"github.com/mcpfleet/mcpfleet/internal/errors"
	"github.com/mcpfleet/mcpfleet/internal/registry"
	"github.com/mcpfleet/mcpfleet/internal/shutdown"
)

// Manager is the public facade over the registry, dispatcher, and
// shutdown coordinator. Managers are single-use: once shut down, create
// a new one.
type Manager struct {
	log         *slog.Logger
	cfg         *Config
	registry    *registry.Registry
	dispatcher  *dispatch.Dispatcher
	coordinator *shutdown.Coordinator

	mu      sync.Mutex
	started bool
}

// New creates a manager over a validated configuration.
func New(cfg *Config, opts ...Option) *Manager {
	options := applyOptions(opts)
	options.apply(cfg)

	log := options.logger
	if log == nil {
		log = NopLogger()
	}

	connector := options.connector
	if connector == nil {
		connector = engine.NewSDKConnector(log)
	}

	reg := registry.New(log, connector,
		cfg.Defaults.HandshakeTimeout.Std(),
		cfg.Defaults.GracePeriod.Std(),
	)
	disp := dispatch.New(log, reg, cfg)
	coord := shutdown.New(log, disp, reg, cfg.Defaults.GracePeriod.Std())

	return &Manager{
		log:         log.With("component", "manager"),
		cfg:         cfg,
		registry:    reg,
		dispatcher:  disp,
		coordinator: coord,
	}
}

// Start launches every configured server concurrently and waits for the
// handshakes. A launch failure is fatal for that server only; Start
// returns an error only when no server became ready. Per-server
// outcomes are visible via Servers().
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()

	if m.started {
		m.mu.Unlock()

		return errors.ErrAlreadyStarted
	}

	m.started = true
	m.mu.Unlock()

	m.log.Info("Starting servers", "count", len(m.cfg.Servers))

	var (
		eg        errgroup.Group
		launchMu  sync.Mutex
		launchErr []error
	)

	for _, name := range m.cfg.Names() {
		spec := m.cfg.Servers[name]

		eg.Go(func() error {
			if _, err := m.registry.Start(ctx, spec); err != nil {
				launchMu.Lock()
				launchErr = append(launchErr, err)
				launchMu.Unlock()
			}

			return nil
		})
	}

	_ = eg.Wait()

	if len(launchErr) == len(m.cfg.Servers) {
		return stderrors.Join(launchErr...)
	}

	if len(launchErr) > 0 {
		m.log.Warn("Some servers failed to launch", "failed", len(launchErr), "total", len(m.cfg.Servers))
	}

	return nil
}

// Invoke executes one tool call, always returning a result with either
// a payload or a failure descriptor.
func (m *Manager) Invoke(ctx context.Context, req ToolCallRequest) *ToolCallResult {
	if !m.isStarted() {
		return &ToolCallResult{
			Server: req.Server,
			Tool:   req.Tool,
			Failure: &Failure{
				Kind:    FailureServerUnavailable,
				Message: errors.ErrNotStarted.Error(),
			},
		}
	}

	return m.dispatcher.Invoke(ctx, req)
}

// Servers returns a status snapshot of every handle, sorted by name.
func (m *Manager) Servers() []ServerInfo {
	return m.registry.Infos()
}

// Tools returns the cached tool catalog of one server.
func (m *Manager) Tools(server string) ([]*Tool, error) {
	handle, err := m.registry.Get(server)
	if err != nil {
		return nil, err
	}

	return handle.Tools(), nil
}

// Ping round-trips a protocol ping against one server and returns the
// observed latency.
func (m *Manager) Ping(ctx context.Context, server string) (time.Duration, error) {
	handle, err := m.registry.Get(server)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if err := handle.Ping(ctx); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

// StopServer terminates one server. Stopping an already stopped or
// failed server is a no-op.
func (m *Manager) StopServer(ctx context.Context, server string) error {
	return m.registry.Stop(ctx, server)
}

// InitiateShutdown starts the drain-and-stop sequence. Idempotent; a
// second call during draining forces an immediate stop. Wire interrupt
// delivery to this.
func (m *Manager) InitiateShutdown() {
	m.coordinator.InitiateShutdown()
}

// ShutdownState reports where the coordinator is in its
// running → draining → stopped sequence.
func (m *Manager) ShutdownState() ShutdownState {
	return m.coordinator.State()
}

// Done returns a channel closed once shutdown has fully completed.
func (m *Manager) Done() <-chan struct{} {
	return m.coordinator.Done()
}

// Shutdown triggers shutdown and blocks until it completes or ctx
// expires. Safe to call multiple times.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.coordinator.InitiateShutdown()

	return m.coordinator.Wait(ctx)
}

func (m *Manager) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started
}
