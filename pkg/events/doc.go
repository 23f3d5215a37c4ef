/*
Package events provides the in-process event broker for Aegis pub/sub.

Every lifecycle transition in the daemon is announced as a typed event
(task:*, agent:*, tool:*, healing:*, daemon:*, bus:*, memory:*). The broker
fans events out to subscriber channels without blocking publishers: the
central channel is buffered, and a subscriber whose buffer is full misses the
event rather than stalling the emitter.

Ordering is per-emitter FIFO. Events published by a single goroutine arrive at
each subscriber in publish order; no ordering is guaranteed across emitters.

The gateway subscribes to forward events to connected clients, and the
supervisor subscribes to observe healing activity.
*/
package events
