/*
Package governance implements bounded-autonomy decisioning.

Every proposed tool invocation is resolved to an authority level from the
policy table (critical→requireHuman, high→requireApproval, medium→logOnly,
low→autoApprove), subject to three adjustments applied in order: a
per-operation override, the requiresApproval floor declared by the tool, and
value-threshold escalation when the caller's estimated value exceeds the
policy's auto-approve ceiling.

The engine keeps a bounded in-memory log of every decision so the admin
surface can explain why an invocation was blocked or allowed.
*/
package governance
