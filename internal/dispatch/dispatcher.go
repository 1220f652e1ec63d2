package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/mcpfleet/mcpfleet/internal/config"
	"github.com/mcpfleet/mcpfleet/internal/errors"
	"github.com/mcpfleet/mcpfleet/internal/registry"
)

// Lookup resolves server names to handles. Satisfied by
// *registry.Registry; the dispatcher never controls handle lifetimes.
type Lookup interface {
	Get(name string) (*registry.Handle, error)
}

// Dispatcher routes tool calls to ready handles under the configured
// concurrency and timeout policy.
type Dispatcher struct {
	log    *slog.Logger
	lookup Lookup
	cfg    *config.Config

	// global is the shared permit pool. Servers with a maxConcurrency
	// override draw from their own pool in perServer instead; the
	// perServer map is immutable after construction.
	global    *semaphore.Weighted
	perServer map[string]*semaphore.Weighted

	// In-flight tracking for drain: registration and the draining flag
	// flip under one mutex so no call slips past a drain unregistered.
	stateMu  sync.Mutex
	draining bool
	inFlight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a dispatcher over the given lookup and configuration.
func New(log *slog.Logger, lookup Lookup, cfg *config.Config) *Dispatcher {
	perServer := make(map[string]*semaphore.Weighted)

	for name, spec := range cfg.Servers {
		if spec.MaxConcurrency > 0 {
			perServer[name] = semaphore.NewWeighted(int64(spec.MaxConcurrency))
		}
	}

	return &Dispatcher{
		log:       log.With("component", "dispatcher"),
		lookup:    lookup,
		cfg:       cfg,
		global:    semaphore.NewWeighted(int64(cfg.Defaults.MaxConcurrency)),
		perServer: perServer,
		inFlight:  make(map[string]context.CancelFunc, 16),
	}
}

// Invoke executes one tool call and always returns a result: a payload
// on success, a failure descriptor otherwise. The concurrency permit is
// released on every exit path.
func (d *Dispatcher) Invoke(ctx context.Context, req ToolCallRequest) *ToolCallResult {
	callID := ulid.Make().String()

	res := &ToolCallResult{CallID: callID, Server: req.Server, Tool: req.Tool}
	log := d.log.With("call_id", callID, "server", req.Server, "tool", req.Tool)

	timeout := req.Timeout

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !d.begin(callID, cancel) {
		log.Debug("Call rejected, dispatcher draining")

		return res.fail(FailureShuttingDown, errors.ErrShuttingDown.Error())
	}
	defer d.finish(callID)

	handle, err := d.lookup.Get(req.Server)
	if err != nil {
		log.Debug("Unknown server", "error", err)

		return res.fail(FailureNotFound, err.Error())
	}

	// A call may only target a ready handle; anything else fails fast
	// without consuming a permit.
	if state := handle.State(); state != registry.StateReady {
		unavailable := &errors.ServerUnavailableError{Server: req.Server, State: state.String()}

		log.Debug("Server unavailable", "state", state.String())

		return res.fail(FailureServerUnavailable, unavailable.Error())
	}

	if failure := d.validateArguments(handle, req); failure != nil {
		log.Debug("Argument validation failed", "error", failure.Message)
		res.Failure = failure

		return res
	}

	if timeout <= 0 {
		timeout = d.cfg.TimeoutFor(handle.Spec())
	}

	start := time.Now()

	// The timeout governs slot wait plus execution.
	deadlineCtx, cancelDeadline := context.WithTimeout(callCtx, timeout)
	defer cancelDeadline()

	sem := d.semaphoreFor(req.Server)

	if err := sem.Acquire(deadlineCtx, 1); err != nil {
		res.Duration = time.Since(start)

		return d.failFromContext(log, res, deadlineCtx, timeout, "waiting for concurrency slot")
	}
	defer sem.Release(1)

	log.Debug("Slot acquired, dispatching", "timeout", timeout)

	payload, err := handle.Session().CallTool(deadlineCtx, req.Tool, req.Arguments)
	res.Duration = time.Since(start)

	if err != nil {
		if deadlineCtx.Err() != nil {
			return d.failFromContext(log, res, deadlineCtx, timeout, "awaiting response")
		}

		log.Warn("Tool call failed", "error", err)

		return res.fail(FailureToolError, err.Error())
	}

	res.Payload = payload

	if payload != nil && payload.IsError {
		log.Debug("Tool reported error result")

		return res.fail(FailureToolError, res.Text())
	}

	log.Debug("Tool call succeeded", "duration", res.Duration)

	return res
}

// validateArguments checks the payload against the tool's cached input
// schema, when one exists. Runs before any permit is consumed.
func (d *Dispatcher) validateArguments(handle *registry.Handle, req ToolCallRequest) *Failure {
	tool, ok := handle.Tool(req.Tool)
	if !ok || tool.Schema == nil {
		// Unknown tools are left to the server to reject; servers may
		// expose tools lazily after the initial listing.
		return nil
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if err := tool.Schema.Validate(args); err != nil {
		invalid := &errors.InvalidArgumentsError{Server: req.Server, Tool: req.Tool, Err: err}

		return &Failure{Kind: FailureInvalidArguments, Message: invalid.Error()}
	}

	return nil
}

// failFromContext classifies a context-driven failure: deadline expiry
// is a timeout, cancellation during drain is shutdown, anything else is
// caller cancellation reported as a timeout-class failure.
func (d *Dispatcher) failFromContext(
	log *slog.Logger,
	res *ToolCallResult,
	ctx context.Context,
	timeout time.Duration,
	phase string,
) *ToolCallResult {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("Tool call timed out", "timeout", timeout, "phase", phase)

		return res.fail(FailureTimeout, fmt.Sprintf("%v after %s (%s)", errors.ErrCallTimeout, timeout, phase))
	}

	if d.isDraining() {
		log.Debug("Tool call cancelled by shutdown", "phase", phase)

		return res.fail(FailureShuttingDown, errors.ErrShuttingDown.Error())
	}

	log.Debug("Tool call cancelled by caller", "phase", phase)

	return res.fail(FailureTimeout, fmt.Sprintf("cancelled while %s: %v", phase, ctx.Err()))
}

// semaphoreFor returns the permit pool for a server: its dedicated pool
// when an override is configured, the global pool otherwise.
func (d *Dispatcher) semaphoreFor(server string) *semaphore.Weighted {
	if sem, ok := d.perServer[server]; ok {
		return sem
	}

	return d.global
}

// begin registers a call for drain tracking. Returns false when the
// dispatcher is draining and the call must be rejected.
func (d *Dispatcher) begin(callID string, cancel context.CancelFunc) bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.draining {
		return false
	}

	d.inFlight[callID] = cancel
	d.wg.Add(1)

	return true
}

// finish removes a call from drain tracking.
func (d *Dispatcher) finish(callID string) {
	d.stateMu.Lock()
	delete(d.inFlight, callID)
	d.stateMu.Unlock()

	d.wg.Done()
}

// isDraining reports whether new calls are being rejected.
func (d *Dispatcher) isDraining() bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	return d.draining
}

// BeginDrain stops the dispatcher from accepting new calls. In-flight
// calls are unaffected until CancelInFlight.
func (d *Dispatcher) BeginDrain() {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if !d.draining {
		d.draining = true
		d.log.Info("Dispatcher draining, rejecting new calls", "in_flight", len(d.inFlight))
	}
}

// CancelInFlight cancels every outstanding call. Each cancelled call
// resolves through its own failure path and releases its permit.
func (d *Dispatcher) CancelInFlight() {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	for _, cancel := range d.inFlight {
		cancel()
	}

	if n := len(d.inFlight); n > 0 {
		d.log.Warn("Cancelled in-flight calls", "count", n)
	}
}

// WaitIdle blocks until every in-flight call resolves or ctx expires.
// Reports whether the dispatcher went idle in time.
func (d *Dispatcher) WaitIdle(ctx context.Context) bool {
	idle := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		return true
	case <-ctx.Done():
		return false
	}
}
