package mcpfleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/mcpfleet/mcpfleet/internal/enginetest"
)

func testConfig(t *testing.T, names ...string) *Config {
	t.Helper()

	specs := make([]*ServerSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, &ServerSpec{Name: name, Command: "server-" + name})
	}

	cfg, err := NewConfig(specs)
	require.NoError(t, err)

	return cfg
}

func startedManager(t *testing.T, cfg *Config, connector *enginetest.FakeConnector, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{WithConnector(connector)}, opts...)

	mgr := New(cfg, opts...)
	require.NoError(t, mgr.Start(context.Background()))

	return mgr
}

func TestManager_StartAndInvoke(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	session := connector.Add("sqlite", enginetest.NewFakeSession(
		enginetest.SimpleTool("query"),
		enginetest.SimpleTool("insert"),
	))
	session.CallFunc = func(_ context.Context, tool string, _ map[string]any) (*mcp.CallToolResult, error) {
		return enginetest.TextResult("rows: 3"), nil
	}

	mgr := startedManager(t, testConfig(t, "sqlite"), connector)
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	infos := mgr.Servers()
	require.Len(t, infos, 1)
	require.Equal(t, "sqlite", infos[0].Name)
	require.Equal(t, ServerReady, infos[0].State)
	require.Equal(t, 2, infos[0].ToolCount)

	tools, err := mgr.Tools("sqlite")
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "insert", tools[0].Name)
	require.Equal(t, "query", tools[1].Name)

	res := mgr.Invoke(context.Background(), ToolCallRequest{Server: "sqlite", Tool: "query"})
	require.True(t, res.OK())
	require.Equal(t, "rows: 3", res.Text())
	require.NotEmpty(t, res.CallID)
}

func TestManager_InvokeBeforeStart(t *testing.T) {
	mgr := New(testConfig(t, "alpha"), WithConnector(enginetest.NewFakeConnector()))

	res := mgr.Invoke(context.Background(), ToolCallRequest{Server: "alpha", Tool: "echo"})

	require.False(t, res.OK())
	require.Equal(t, FailureServerUnavailable, res.Failure.Kind)
	require.Contains(t, res.Failure.Message, ErrNotStarted.Error())
}

func TestManager_StartTwice(t *testing.T) {
	mgr := startedManager(t, testConfig(t, "alpha"), enginetest.NewFakeConnector())
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	require.ErrorIs(t, mgr.Start(context.Background()), ErrAlreadyStarted)
}

func TestManager_PartialLaunchFailure(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	connector.Add("healthy", enginetest.NewFakeSession(enginetest.SimpleTool("echo")))
	connector.Fail("broken", errors.New("no such executable"))

	mgr := New(testConfig(t, "healthy", "broken"), WithConnector(connector))

	// One survivor is enough for Start to succeed.
	require.NoError(t, mgr.Start(context.Background()))
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	infos := mgr.Servers()
	require.Len(t, infos, 2)
	require.Equal(t, ServerFailed, infos[0].State)  // broken
	require.Equal(t, ServerReady, infos[1].State)   // healthy

	res := mgr.Invoke(context.Background(), ToolCallRequest{Server: "healthy", Tool: "echo"})
	require.True(t, res.OK())

	res = mgr.Invoke(context.Background(), ToolCallRequest{Server: "broken", Tool: "echo"})
	require.Equal(t, FailureServerUnavailable, res.Failure.Kind)
}

func TestManager_AllLaunchesFail(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	connector.Fail("one", errors.New("spawn failed"))
	connector.Fail("two", errors.New("spawn failed"))

	mgr := New(testConfig(t, "one", "two"), WithConnector(connector))

	err := mgr.Start(context.Background())
	require.Error(t, err)

	var launchErr *LaunchError

	require.ErrorAs(t, err, &launchErr)
}

func TestManager_Ping(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	connector.Add("alpha", enginetest.NewFakeSession(enginetest.SimpleTool("echo")))

	mgr := startedManager(t, testConfig(t, "alpha"), connector)
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	latency, err := mgr.Ping(context.Background(), "alpha")
	require.NoError(t, err)
	require.GreaterOrEqual(t, latency, time.Duration(0))

	_, err = mgr.Ping(context.Background(), "ghost")

	var notFound *NotFoundError

	require.ErrorAs(t, err, &notFound)
}

func TestManager_StopServer(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	connector.Add("alpha", enginetest.NewFakeSession(enginetest.SimpleTool("echo")))

	mgr := startedManager(t, testConfig(t, "alpha"), connector)
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	require.NoError(t, mgr.StopServer(context.Background(), "alpha"))

	res := mgr.Invoke(context.Background(), ToolCallRequest{Server: "alpha", Tool: "echo"})
	require.Equal(t, FailureServerUnavailable, res.Failure.Kind)

	// Stopping again is a no-op.
	require.NoError(t, mgr.StopServer(context.Background(), "alpha"))
}

func TestManager_GracefulShutdown(t *testing.T) {
	connector := enginetest.NewFakeConnector()

	inFlight := make(chan struct{})

	hang := connector.Add("alpha", enginetest.NewFakeSession(enginetest.SimpleTool("hang")))
	hang.CallFunc = func(ctx context.Context, _ string, _ map[string]any) (*mcp.CallToolResult, error) {
		close(inFlight)
		<-ctx.Done()

		return nil, ctx.Err()
	}

	connector.Add("beta", enginetest.NewFakeSession(enginetest.SimpleTool("echo")))

	mgr := startedManager(t, testConfig(t, "alpha", "beta"), connector,
		WithGracePeriod(50*time.Millisecond))

	resCh := make(chan *ToolCallResult, 1)

	go func() {
		resCh <- mgr.Invoke(context.Background(), ToolCallRequest{
			Server: "alpha", Tool: "hang", Timeout: time.Minute,
		})
	}()

	// Shut down only once the call is actually in flight.
	<-inFlight

	require.Equal(t, ShutdownRunning, mgr.ShutdownState())

	mgr.InitiateShutdown()

	require.Equal(t, ShutdownDraining, mgr.ShutdownState())

	// New calls are rejected once the drain takes effect.
	require.Eventually(t, func() bool {
		res := mgr.Invoke(context.Background(), ToolCallRequest{Server: "beta", Tool: "echo"})

		return !res.OK() && res.Failure.Kind == FailureShuttingDown
	}, time.Second, 5*time.Millisecond)

	// The hung call resolves once the grace period cancels it.
	select {
	case res := <-resCh:
		require.False(t, res.OK())
		require.Equal(t, FailureShuttingDown, res.Failure.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call did not resolve during shutdown")
	}

	select {
	case <-mgr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	require.Equal(t, ShutdownStopped, mgr.ShutdownState())

	for _, info := range mgr.Servers() {
		require.Equal(t, ServerStopped, info.State, "server %s", info.Name)
	}
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	connector.Add("alpha", enginetest.NewFakeSession(enginetest.SimpleTool("echo")))

	mgr := startedManager(t, testConfig(t, "alpha"), connector)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, mgr.Shutdown(ctx))
	require.NoError(t, mgr.Shutdown(ctx))
	require.Equal(t, ShutdownStopped, mgr.ShutdownState())
}

func TestManager_DefaultTimeoutOption(t *testing.T) {
	connector := enginetest.NewFakeConnector()
	session := connector.Add("alpha", enginetest.NewFakeSession(enginetest.SimpleTool("hang")))
	session.CallFunc = func(ctx context.Context, _ string, _ map[string]any) (*mcp.CallToolResult, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	mgr := startedManager(t, testConfig(t, "alpha"), connector,
		WithDefaultTimeout(40*time.Millisecond))
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	start := time.Now()
	res := mgr.Invoke(context.Background(), ToolCallRequest{Server: "alpha", Tool: "hang"})

	require.Equal(t, FailureTimeout, res.Failure.Kind)
	require.Less(t, time.Since(start), time.Second)
}
