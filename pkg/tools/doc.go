/*
Package tools provides the tool registry and the uniform execution wrapper.

Tools are registered once at boot by unique name, each carrying a JSON input
schema (compiled at registration), a risk level, and an execute function.
The executor wraps every invocation in the same protocol, in order: schema
validation, governance decision, circuit breaker gate, execution with panic
containment, a single breaker observation, and an audit entry with a
redacted input summary when the decision requires one.

Governance-blocked invocations return a deterministic "approval required"
result instead of running; open breakers return "breaker open" without
invoking the tool.
*/
package tools
