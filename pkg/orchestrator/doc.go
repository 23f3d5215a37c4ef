/*
Package orchestrator owns the canonical task map and task execution.

Every task is routed through a single table mapping task types to agent
roles; system task types take the orchestrator's direct path, which runs the
hooks installed at boot (health sweep, breaker evaluation, consolidation,
self evaluation, dependency audit, introspection). Domain task types take
the sub-handler path: the orchestrator builds an execution context carrying
the role's descriptor and allowed tool names, then delegates to the role
handler, which may consult memory, the model collaborator, and the tool
executor.

Handler failures are caught and reported as a failing TaskResult; tasks are
marked complete either way and never lost. A task that was started but never
completed by a previous process run is reported as abandoned at boot.
*/
package orchestrator
