/*
Package healing implements the self-healing supervisor.

The supervisor sweeps the registered health probes on a schedule and keeps
the latest aggregate report. Three consecutive sweeps containing at least one
unhealthy probe trigger recovery, attempted once per unhealthy component:
memory pressure asks the runtime to collect, a sick store invokes the
registered reinitialization hook, scheduling latency and endpoint failures
are logged and deferred. Recovery never throws; every attempt is announced
as a healing:recovery event.

The supervisor also owns two slower loops: circuit breaker evaluation, which
promotes cooled-down open breakers and announces each transition, and the
low-frequency dependency audit, which probes every declared external endpoint.
*/
package healing
