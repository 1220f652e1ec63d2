// Command mcpfleet manages a fleet of MCP server subprocesses and
// dispatches tool calls to them from the command line.
package main

import "github.com/mcpfleet/mcpfleet/cmd"

func main() {
	cmd.Execute()
}
