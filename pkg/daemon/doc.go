/*
Package daemon wires every subsystem together and owns process lifecycle.

Boot order is fixed: store, event broker, audit ledger, governance, bus,
breaker registry, supervisor, memory, tool registry and executor, task
orchestrator, scheduler, gateway. Shutdown runs the same list in reverse,
best-effort. The daemon also registers the built-in tool set and installs
the orchestrator's direct-path hooks for system task types.
*/
package daemon
