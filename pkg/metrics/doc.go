/*
Package metrics defines the Prometheus instrumentation for the daemon.

All collectors are package-level and registered in init; the gateway mounts
Handler() at /metrics. The Timer helper wraps histogram observations:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.TaskDuration, "research")
*/
package metrics
