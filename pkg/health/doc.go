/*
Package health provides the health probes run by the self-healing supervisor.

Each probe implements the Checker interface and grades one concern as
healthy, degraded, or unhealthy:

  - process: used heap as a percentage of held heap (90%/75%)
  - memory_pressure: resident size against a soft ceiling (512/384 MB)
  - event_loop: goroutine scheduling dispatch delay (100/50 ms)
  - database: a trivial store round trip (error unhealthy, >500 ms degraded)
  - api:<url>: HTTP GET with a 5 s timeout (non-2xx unhealthy, >2 s degraded)

Probes are pure measurements. Aggregation, recovery, and scheduling live in
the healing package.
*/
package health
