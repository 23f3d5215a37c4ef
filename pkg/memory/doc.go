/*
Package memory provides the namespaced persistent memory layer.

Entries carry a namespace, a kind, free-text content, and an optional
expiry. Recall matches by case-insensitive substring; the embedding-backed
vector collaborator implements the same Recaller contract and replaces the
substring search when configured. Consolidation, driven by the scheduler's
recurring job, drops expired entries.
*/
package memory
