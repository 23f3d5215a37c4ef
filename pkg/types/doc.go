/*
Package types defines the core data structures used throughout Aegis.

This package contains all fundamental types that represent the daemon's domain
model: tasks and their results, agent roles, tool and governance types, audit
trail entries, circuit breaker snapshots, health probe results, scheduled jobs,
bus messages, and memory entries. These types are used by all other packages
for state management, scheduling, and the gateway surface.

The package has no dependencies beyond the standard library so that every
component can import it without cycles. Behavior lives in the owning
components; types here carry only small convenience methods (Terminal,
Expired, String).
*/
package types
