// Package engine wraps the MCP SDK client behind the narrow contract
// the registry and dispatcher need: connect to a spec, list tools, call
// a tool, ping, and tear the connection down.
//
// Wire-level request/response encoding, JSON-RPC correlation, and the
// initialize handshake all live in the SDK. Keeping the boundary to a
// small interface lets the rest of the module be tested against mock
// sessions without spawning subprocesses.
package engine
