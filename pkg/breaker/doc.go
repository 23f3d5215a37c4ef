/*
Package breaker implements per-operation circuit breakers.

Each operation name owns a small state machine: closed breakers count
consecutive failures and open at the threshold; open breakers reject callers
until the cooldown elapses, then admit a single probe in half-open; a success
in half-open closes the breaker, a failure re-opens it.

The registry is the single owner of breaker state and is internally locked.
The supervisor drives Evaluate on a timer so open breakers progress to
half-open even when nothing queries them.
*/
package breaker
