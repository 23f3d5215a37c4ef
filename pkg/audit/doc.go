/*
Package audit implements the tamper-evident operational history of Aegis.

Entries form a SHA-256 hash chain: each entry's hash covers its own canonical
fields plus the previous entry's hash, with a genesis value of sixty-four
zeros. Sequence numbers are a gapless monotone series starting at 1; the store
assigns them inside the append transaction so concurrent writers can never
duplicate one.

VerifyChain replays the whole trail and reports the earliest row where either
the linkage or the recomputed hash does not match. Violations are reported and
never repaired automatically.
*/
package audit
