// Package mcpfleet manages a fleet of MCP server subprocesses for a
// tool-calling client: it launches one subprocess per configured
// server, dispatches tool calls to them with bounded concurrency and
// per-call timeouts, and tears everything down deterministically on
// interrupt or exit.
//
// # Basic Usage
//
// Load a configuration, start the fleet, invoke tools, shut down:
//
//	cfg, err := mcpfleet.LoadConfig("server_config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr := mcpfleet.New(cfg, mcpfleet.WithLogger(slog.Default()))
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Shutdown(context.Background())
//
//	res := mgr.Invoke(ctx, mcpfleet.ToolCallRequest{
//	    Server:    "sqlite",
//	    Tool:      "query",
//	    Arguments: map[string]any{"sql": "select 1"},
//	})
//	if !res.OK() {
//	    log.Fatalf("%s: %s", res.Failure.Kind, res.Failure.Message)
//	}
//	fmt.Println(res.Text())
//
// # Concurrency and timeouts
//
// At most maxConcurrency calls are in flight at once; further calls
// wait first-come-first-served for a free slot. A server spec may carry
// its own maxConcurrency, in which case its calls draw from a dedicated
// pool. The per-request timeout (or the server/global default) covers
// slot wait plus execution.
//
// # Shutdown
//
// InitiateShutdown is idempotent and safe to wire to any interrupt
// delivery. The first trigger drains: new calls fail with a
// shutting_down result while in-flight calls get a grace period. A
// second trigger forces immediate cancellation. Either way every
// subprocess is stopped, force-killed after its grace period if needed.
package mcpfleet
