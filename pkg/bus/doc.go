/*
Package bus implements the actor-addressed inter-handler message bus.

Each actor owns a mailbox. Delivery is at-least-once: a message remains
visible to Receive until it is acknowledged (directly, via Consume, or as a
side effect of Respond) or its TTL elapses. A background sweep drops expired
messages every minute and emits one bus:expired event per drop.

Within one mailbox delivery order is FIFO. Broadcast enqueues into every
registered mailbox except the sender's; delivery order across recipients is
not guaranteed.
*/
package bus
