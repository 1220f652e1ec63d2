package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpfleet/mcpfleet/internal/enginetest"
)

// fakeDispatcher is a controllable drain surface.
type fakeDispatcher struct {
	mu        sync.Mutex
	draining  bool
	cancelled bool

	// pending simulates in-flight calls; WaitIdle blocks until it is
	// closed or the context expires.
	pending chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{pending: make(chan struct{})}
}

func (d *fakeDispatcher) BeginDrain() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.draining = true
}

func (d *fakeDispatcher) CancelInFlight() {
	d.mu.Lock()
	d.cancelled = true
	d.mu.Unlock()

	// Cancelled calls resolve promptly.
	close(d.pending)
}

func (d *fakeDispatcher) WaitIdle(ctx context.Context) bool {
	select {
	case <-d.pending:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *fakeDispatcher) Draining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.draining
}

func (d *fakeDispatcher) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cancelled
}

// fakeStopper records teardown invocations.
type fakeStopper struct {
	calls atomic.Int32
}

func (s *fakeStopper) StopAll(_ context.Context) {
	s.calls.Add(1)
}

func TestInitiateShutdown_IdleStopsImmediately(t *testing.T) {
	dispatcher := newFakeDispatcher()
	close(dispatcher.pending) // nothing in flight

	stopper := &fakeStopper{}
	coord := New(enginetest.DiscardLogger(), dispatcher, stopper, time.Second)

	require.Equal(t, StateRunning, coord.State())

	coord.InitiateShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, coord.Wait(ctx))
	require.Equal(t, StateStopped, coord.State())
	require.True(t, dispatcher.Draining())
	require.False(t, dispatcher.Cancelled(), "idle drain must not cancel anything")
	require.Equal(t, int32(1), stopper.calls.Load())
}

func TestInitiateShutdown_CancelsAfterGrace(t *testing.T) {
	dispatcher := newFakeDispatcher() // pending never resolves voluntarily
	stopper := &fakeStopper{}
	coord := New(enginetest.DiscardLogger(), dispatcher, stopper, 30*time.Millisecond)

	start := time.Now()

	coord.InitiateShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, coord.Wait(ctx))
	require.True(t, dispatcher.Cancelled())
	require.Equal(t, int32(1), stopper.calls.Load())
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestInitiateShutdown_InFlightResolvesWithinGrace(t *testing.T) {
	dispatcher := newFakeDispatcher()
	stopper := &fakeStopper{}
	coord := New(enginetest.DiscardLogger(), dispatcher, stopper, time.Second)

	coord.InitiateShutdown()
	require.Equal(t, StateDraining, coord.State())

	// The in-flight call finishes well within the grace period.
	time.Sleep(20 * time.Millisecond)
	close(dispatcher.pending)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, coord.Wait(ctx))
	require.False(t, dispatcher.Cancelled())
	require.Equal(t, StateStopped, coord.State())
}

func TestInitiateShutdown_SecondTriggerForces(t *testing.T) {
	dispatcher := newFakeDispatcher()
	stopper := &fakeStopper{}

	// A long grace period that a forced stop must cut short.
	coord := New(enginetest.DiscardLogger(), dispatcher, stopper, time.Minute)

	start := time.Now()

	coord.InitiateShutdown()
	require.Equal(t, StateDraining, coord.State())

	coord.InitiateShutdown() // force

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, coord.Wait(ctx))
	require.True(t, dispatcher.Cancelled())
	require.Less(t, time.Since(start), time.Second, "forced stop must not wait out the grace period")
}

func TestInitiateShutdown_IdempotentAfterStop(t *testing.T) {
	dispatcher := newFakeDispatcher()
	close(dispatcher.pending)

	stopper := &fakeStopper{}
	coord := New(enginetest.DiscardLogger(), dispatcher, stopper, time.Second)

	coord.InitiateShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, coord.Wait(ctx))

	coord.InitiateShutdown()
	coord.InitiateShutdown()

	require.Equal(t, StateStopped, coord.State())
	require.Equal(t, int32(1), stopper.calls.Load(), "teardown must run exactly once")
}

func TestWait_ContextExpiry(t *testing.T) {
	dispatcher := newFakeDispatcher()
	coord := New(enginetest.DiscardLogger(), dispatcher, &fakeStopper{}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, coord.Wait(ctx), context.DeadlineExceeded)
}

func TestDone_ClosedOnCompletion(t *testing.T) {
	dispatcher := newFakeDispatcher()
	close(dispatcher.pending)

	coord := New(enginetest.DiscardLogger(), dispatcher, &fakeStopper{}, time.Second)

	select {
	case <-coord.Done():
		t.Fatal("done closed before shutdown")
	default:
	}

	coord.InitiateShutdown()

	select {
	case <-coord.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed after shutdown")
	}
}
