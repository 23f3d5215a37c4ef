/*
Package storage provides the embedded persistence layer for Aegis.

State is kept in a single bbolt database under the configured data directory.
Each component owns its buckets: tasks (orchestrator), audit_trail (ledger),
memories (memory store), execution_log (scheduler), self_evaluations,
marketplace_tools (tool registry), and the knowledge graph buckets.

Audit rows are keyed by 8-byte big-endian sequence number so bucket order
equals sequence order. AppendAudit hands the caller the persisted tail
(sequence and hash) inside the write transaction, which makes the append
atomic with respect to the sequence counter: two concurrent appends can never
produce the same sequence number.

The Store interface is the only surface other packages depend on; BoltStore is
the single production implementation.
*/
package storage
