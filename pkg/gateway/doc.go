/*
Package gateway is the daemon's HTTP and websocket control surface.

Every route except /healthz requires the shared bearer secret and passes a
global token-bucket rate limiter. GET /v1/events upgrades to a websocket
that streams broker events; a single relay goroutine fans out to clients so
a slow reader never blocks the broker. The remaining routes expose task
submission and control, job management, daemon status, memory statistics,
and audit queries.
*/
package gateway
