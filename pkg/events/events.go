package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventTaskCreated   EventType = "task:created"
	EventTaskStarted   EventType = "task:started"
	EventTaskCompleted EventType = "task:completed"
	EventTaskFailed    EventType = "task:failed"

	EventAgentSpawned    EventType = "agent:spawned"
	EventAgentTerminated EventType = "agent:terminated"
	EventAgentError      EventType = "agent:error"

	EventToolInvoked EventType = "tool:invoked"
	EventToolResult  EventType = "tool:result"

	EventHealingHealthCheck  EventType = "healing:health_check"
	EventHealingCircuitBreak EventType = "healing:circuit_break"
	EventHealingRecovery     EventType = "healing:recovery"

	EventDaemonStarted   EventType = "daemon:started"
	EventDaemonHeartbeat EventType = "daemon:heartbeat"
	EventDaemonStopped   EventType = "daemon:stopped"

	EventBusSent      EventType = "bus:sent"
	EventBusBroadcast EventType = "bus:broadcast"
	EventBusExpired   EventType = "bus:expired"

	EventMemoryStored   EventType = "memory:stored"
	EventMemoryRecalled EventType = "memory:recalled"
)

// Event represents a daemon event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Actor     string
	Message   string
	Data      map[string]any
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256), // buffered so emitters never block
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64) // buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish publishes an event to all subscribers. Events from a single
// publisher are delivered in the order they were published.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// Emit is a convenience wrapper for Publish.
func (b *Broker) Emit(t EventType, actor string, data map[string]any) {
	b.Publish(&Event{Type: t, Actor: actor, Data: data})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
