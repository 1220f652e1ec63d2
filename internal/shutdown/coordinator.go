package shutdown

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// forceKillMargin caps how long the registry teardown may take beyond
// the per-handle grace period.
const forceKillMargin = 2 * time.Second

// State is the coordinator's lifecycle state.
type State int32

const (
	// StateRunning accepts new tool calls.
	StateRunning State = iota
	// StateDraining rejects new calls while in-flight ones resolve.
	StateDraining
	// StateStopped means every handle has been terminated.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Dispatcher is the drain surface the coordinator needs.
type Dispatcher interface {
	BeginDrain()
	CancelInFlight()
	WaitIdle(ctx context.Context) bool
}

// Stopper tears down every server handle. Satisfied by the registry.
type Stopper interface {
	StopAll(ctx context.Context)
}

// Coordinator drives the drain-and-stop sequence exactly once.
type Coordinator struct {
	log        *slog.Logger
	dispatcher Dispatcher
	stopper    Stopper
	grace      time.Duration

	mu    sync.Mutex
	state State

	forceOnce sync.Once
	force     chan struct{}
	done      chan struct{}
}

// New creates a coordinator in the running state.
func New(log *slog.Logger, dispatcher Dispatcher, stopper Stopper, grace time.Duration) *Coordinator {
	return &Coordinator{
		log:        log.With("component", "shutdown"),
		dispatcher: dispatcher,
		stopper:    stopper,
		grace:      grace,
		state:      StateRunning,
		force:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Done returns a channel closed once every handle is stopped.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until shutdown completes or ctx expires.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitiateShutdown starts the drain-and-stop sequence. Idempotent: the
// first call begins draining, a second call during draining forces an
// immediate stop, and any call after stopped is a no-op.
func (c *Coordinator) InitiateShutdown() {
	c.mu.Lock()

	switch c.state {
	case StateRunning:
		c.state = StateDraining
		c.mu.Unlock()

		c.log.Info("Shutdown initiated, draining", "grace", c.grace)

		go c.run()

	case StateDraining:
		c.mu.Unlock()

		c.forceOnce.Do(func() {
			c.log.Warn("Second shutdown trigger, forcing immediate stop")
			close(c.force)
		})

	case StateStopped:
		c.mu.Unlock()
	}
}

// run executes the drain then the teardown. Called exactly once.
func (c *Coordinator) run() {
	c.dispatcher.BeginDrain()

	// Let in-flight calls finish voluntarily, cut short by a second
	// trigger.
	graceCtx, cancel := context.WithTimeout(context.Background(), c.grace)

	go func() {
		select {
		case <-c.force:
			cancel()
		case <-graceCtx.Done():
		}
	}()

	idle := c.dispatcher.WaitIdle(graceCtx)

	cancel()

	if idle {
		c.log.Info("All in-flight calls resolved")
	} else {
		c.log.Warn("Grace period over, cancelling in-flight calls")
		c.dispatcher.CancelInFlight()

		// Cancelled calls resolve through their own failure paths;
		// bound the flush so a stuck call can never hang shutdown.
		flushCtx, flushCancel := context.WithTimeout(context.Background(), c.grace)

		if !c.dispatcher.WaitIdle(flushCtx) {
			c.log.Error("In-flight calls did not resolve after cancellation")
		}

		flushCancel()
	}

	// Handles are independent; the registry stops them concurrently,
	// each with its own grace period and force-kill fallback.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), c.grace+forceKillMargin)
	c.stopper.StopAll(stopCtx)
	stopCancel()

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	close(c.done)

	c.log.Info("Shutdown complete")
}
