package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
)

const (
	// sweepInterval is how often expired messages are dropped.
	sweepInterval = 60 * time.Second
	// ackedCap bounds the acknowledged-id set; on overflow it is truncated
	// to the most recent half.
	ackedCap  = 5000
	ackedKeep = 2500
)

// ErrUnknownMessage is returned when a referenced message cannot be found.
var ErrUnknownMessage = fmt.Errorf("message not found")

// Bus delivers directed and broadcast messages between actors with
// at-least-once semantics: a message stays in its mailbox until acknowledged
// or expired.
type Bus struct {
	mu        sync.Mutex
	mailboxes map[string][]*types.BusMessage
	acked     map[string]bool
	ackOrder  []string
	broker    *events.Broker
	stopCh    chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// New creates a message bus publishing lifecycle events to broker.
func New(broker *events.Broker) *Bus {
	return &Bus{
		mailboxes: make(map[string][]*types.BusMessage),
		acked:     make(map[string]bool),
		broker:    broker,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the background expiration sweep.
func (b *Bus) Start() {
	go b.run()
}

// Stop stops the sweep loop.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// RegisterActor ensures a mailbox exists for the actor.
func (b *Bus) RegisterActor(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.mailboxes[name]; !ok {
		b.mailboxes[name] = nil
	}
}

// Send enqueues a directed message into the recipient's mailbox.
func (b *Bus) Send(from, to string, payload map[string]any, ttl time.Duration) *types.BusMessage {
	msg := &types.BusMessage{
		ID:        uuid.New().String(),
		FromActor: from,
		ToActor:   to,
		Kind:      types.MessageRequest,
		Payload:   payload,
		Timestamp: b.now(),
		TTL:       ttl,
	}

	b.mu.Lock()
	b.mailboxes[to] = append(b.mailboxes[to], msg)
	b.mu.Unlock()

	b.broker.Emit(events.EventBusSent, from, map[string]any{
		"message_id": msg.ID,
		"to":         to,
	})
	return msg
}

// Respond finds the referenced message, sends a reply to its original sender
// annotated with InReplyTo, and acknowledges the original.
func (b *Bus) Respond(originalID, from string, payload map[string]any, ttl time.Duration) (*types.BusMessage, error) {
	b.mu.Lock()
	var original *types.BusMessage
	for _, box := range b.mailboxes {
		for _, m := range box {
			if m.ID == originalID {
				original = m
				break
			}
		}
		if original != nil {
			break
		}
	}
	if original == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("respond to %s: %w", originalID, ErrUnknownMessage)
	}

	reply := &types.BusMessage{
		ID:        uuid.New().String(),
		FromActor: from,
		ToActor:   original.FromActor,
		Kind:      types.MessageResponse,
		Payload:   payload,
		InReplyTo: originalID,
		Timestamp: b.now(),
		TTL:       ttl,
	}
	b.mailboxes[reply.ToActor] = append(b.mailboxes[reply.ToActor], reply)
	b.ackLocked(originalID)
	b.mu.Unlock()

	b.broker.Emit(events.EventBusSent, from, map[string]any{
		"message_id":  reply.ID,
		"to":          reply.ToActor,
		"in_reply_to": originalID,
	})
	return reply, nil
}

// Broadcast enqueues the message into every known mailbox except the sender's.
func (b *Bus) Broadcast(from string, payload map[string]any, ttl time.Duration) []*types.BusMessage {
	b.mu.Lock()
	var sent []*types.BusMessage
	for actor := range b.mailboxes {
		if actor == from {
			continue
		}
		msg := &types.BusMessage{
			ID:        uuid.New().String(),
			FromActor: from,
			ToActor:   actor,
			Kind:      types.MessageBroadcast,
			Payload:   payload,
			Timestamp: b.now(),
			TTL:       ttl,
		}
		b.mailboxes[actor] = append(b.mailboxes[actor], msg)
		sent = append(sent, msg)
	}
	b.mu.Unlock()

	b.broker.Emit(events.EventBusBroadcast, from, map[string]any{
		"recipients": len(sent),
	})
	return sent
}

// Receive returns up to limit unacknowledged, unexpired messages from the
// actor's mailbox without consuming them.
func (b *Bus) Receive(actor string, limit int) []*types.BusMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending(actor, limit)
}

// Consume returns up to limit pending messages and acknowledges every
// returned message.
func (b *Bus) Consume(actor string, limit int) []*types.BusMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.pending(actor, limit)
	for _, m := range msgs {
		b.ackLocked(m.ID)
	}
	return msgs
}

// Acknowledge marks a message delivered.
func (b *Bus) Acknowledge(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ackLocked(id)
}

// QueueDepth returns the unacknowledged message count for the actor.
func (b *Bus) QueueDepth(actor string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	depth := 0
	now := b.now()
	for _, m := range b.mailboxes[actor] {
		if !b.acked[m.ID] && !m.Expired(now) {
			depth++
		}
	}
	return depth
}

// pending collects unacknowledged, unexpired messages in mailbox order.
// Caller holds the lock.
func (b *Bus) pending(actor string, limit int) []*types.BusMessage {
	now := b.now()
	var out []*types.BusMessage
	for _, m := range b.mailboxes[actor] {
		if len(out) >= limit {
			break
		}
		if b.acked[m.ID] || m.Expired(now) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (b *Bus) ackLocked(id string) {
	if b.acked[id] {
		return
	}
	b.acked[id] = true
	b.ackOrder = append(b.ackOrder, id)

	if len(b.ackOrder) > ackedCap {
		drop := b.ackOrder[:len(b.ackOrder)-ackedKeep]
		for _, old := range drop {
			delete(b.acked, old)
		}
		b.ackOrder = append([]string(nil), b.ackOrder[len(b.ackOrder)-ackedKeep:]...)
	}
}

func (b *Bus) run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Sweep()
		case <-b.stopCh:
			return
		}
	}
}

// Sweep drops expired messages from every mailbox, emitting one expiration
// event per dropped message, and prunes acknowledged messages.
func (b *Bus) Sweep() int {
	b.mu.Lock()
	now := b.now()
	var expired []*types.BusMessage
	for actor, box := range b.mailboxes {
		kept := box[:0]
		for _, m := range box {
			switch {
			case b.acked[m.ID]:
				// Acknowledged messages are dropped silently.
			case m.Expired(now):
				expired = append(expired, m)
			default:
				kept = append(kept, m)
			}
		}
		b.mailboxes[actor] = kept
	}
	b.mu.Unlock()

	for _, m := range expired {
		b.broker.Emit(events.EventBusExpired, m.FromActor, map[string]any{
			"message_id": m.ID,
			"to":         m.ToActor,
		})
	}
	if len(expired) > 0 {
		logger := log.WithComponent("bus")
		logger.Debug().
			Int("expired", len(expired)).
			Msg("expired messages dropped")
	}
	return len(expired)
}
