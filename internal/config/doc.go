// Package config loads and validates the server configuration consumed
// by the registry and dispatcher.
//
// The on-disk format is the classic server_config.json layout: a
// "mcpServers" mapping of server name to launch command, plus an
// optional "defaults" block for the global timeout, concurrency limit,
// handshake timeout, and shutdown grace period. The same shape is
// accepted as YAML when the file extension is .yaml or .yml.
package config
