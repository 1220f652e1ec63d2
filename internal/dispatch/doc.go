// Package dispatch routes tool invocations to ready server handles
// under a bounded-concurrency, bounded-time policy.
//
// Every call draws one permit from a weighted semaphore (the global
// pool, or a per-server pool when the spec carries an override) and
// holds it for the duration of the call. Acquisition is
// first-come-first-served. The request timeout covers slot wait plus
// execution; a call that cannot finish in time resolves to a timeout
// failure with its permit released.
package dispatch
