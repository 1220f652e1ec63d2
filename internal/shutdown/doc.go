// Package shutdown coordinates the drain-and-stop sequence: reject new
// tool calls, give in-flight calls a bounded grace period, cancel
// whatever remains, then terminate every server subprocess.
//
// The coordinator is a running → draining → stopped state machine
// driven by one idempotent entry point, so any calling environment can
// wire its own interrupt delivery into the same contract. A second
// trigger during draining shortens the grace period to an immediate
// forced stop.
package shutdown
