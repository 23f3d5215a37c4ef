package bus

import (
	"testing"
	"time"

	"github.com/aegislabs/aegis/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() (*Bus, *events.Broker) {
	broker := events.NewBroker()
	broker.Start()
	return New(broker), broker
}

func TestSendReceiveConsume(t *testing.T) {
	b, broker := newTestBus()
	defer broker.Stop()
	b.RegisterActor("analyst")
	b.RegisterActor("operator")

	msg := b.Send("analyst", "operator", map[string]any{"ask": "status"}, time.Hour)
	require.NotEmpty(t, msg.ID)
	assert.Equal(t, 1, b.QueueDepth("operator"))

	// Receive does not consume.
	got := b.Receive("operator", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "analyst", got[0].FromActor)
	assert.Equal(t, 1, b.QueueDepth("operator"))

	// Consume acknowledges.
	got = b.Consume("operator", 10)
	require.Len(t, got, 1)
	assert.Equal(t, 0, b.QueueDepth("operator"))
	assert.Empty(t, b.Consume("operator", 10))
}

func TestRespondRepliesToSenderAndAcksOriginal(t *testing.T) {
	b, broker := newTestBus()
	defer broker.Stop()
	b.RegisterActor("analyst")
	b.RegisterActor("operator")

	original := b.Send("analyst", "operator", map[string]any{"ask": "status"}, time.Hour)

	reply, err := b.Respond(original.ID, "operator", map[string]any{"status": "ok"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "analyst", reply.ToActor)
	assert.Equal(t, original.ID, reply.InReplyTo)

	// Original is acknowledged, reply is pending for the sender.
	assert.Equal(t, 0, b.QueueDepth("operator"))
	assert.Equal(t, 1, b.QueueDepth("analyst"))
}

func TestRespondUnknownMessage(t *testing.T) {
	b, broker := newTestBus()
	defer broker.Stop()

	_, err := b.Respond("no-such-id", "operator", nil, time.Hour)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestBroadcastSkipsSender(t *testing.T) {
	b, broker := newTestBus()
	defer broker.Stop()
	b.RegisterActor("orchestrator")
	b.RegisterActor("analyst")
	b.RegisterActor("operator")

	sent := b.Broadcast("orchestrator", map[string]any{"kind": "sync"}, time.Hour)
	assert.Len(t, sent, 2)
	assert.Equal(t, 0, b.QueueDepth("orchestrator"))
	assert.Equal(t, 1, b.QueueDepth("analyst"))
	assert.Equal(t, 1, b.QueueDepth("operator"))
}

func TestSweepDropsExpiredOnce(t *testing.T) {
	b, broker := newTestBus()
	defer broker.Stop()
	b.RegisterActor("operator")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return base }

	b.Send("analyst", "operator", map[string]any{"n": 1}, time.Minute)
	b.Send("analyst", "operator", map[string]any{"n": 2}, time.Hour)

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	// Advance past the first message's TTL.
	b.now = func() time.Time { return base.Add(2 * time.Minute) }

	assert.Equal(t, 1, b.Sweep())
	assert.Equal(t, 1, b.QueueDepth("operator"))

	// Earlier bus:sent events may still be in flight; wait for the expiry.
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == events.EventBusExpired {
				assert.Equal(t, "operator", ev.Data["to"])
			} else {
				continue
			}
		case <-deadline:
			t.Fatal("expected a bus:expired event")
		}
		break
	}

	// Second sweep finds nothing: the drop happened exactly once.
	assert.Equal(t, 0, b.Sweep())
}

func TestExpiredMessagesNotDelivered(t *testing.T) {
	b, broker := newTestBus()
	defer broker.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return base }
	b.Send("analyst", "operator", nil, time.Minute)

	b.now = func() time.Time { return base.Add(time.Hour) }
	assert.Empty(t, b.Receive("operator", 10))
	assert.Equal(t, 0, b.QueueDepth("operator"))
}
