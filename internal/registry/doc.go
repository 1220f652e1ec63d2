// Package registry launches, tracks, and terminates one subprocess per
// configured MCP server.
//
// The registry is the sole owner of the handle table and the only
// component permitted to terminate a subprocess. Other components look
// handles up by server name and never control their lifetime.
package registry
