package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Emit(EventTaskCreated, "orchestrator", map[string]any{"task_id": "t1"})

	for _, sub := range []Subscriber{sub1, sub2} {
		ev := recvEvent(t, sub)
		assert.Equal(t, EventTaskCreated, ev.Type)
		assert.Equal(t, "orchestrator", ev.Actor)
		assert.Equal(t, "t1", ev.Data["task_id"])
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	types := []EventType{EventTaskCreated, EventTaskStarted, EventTaskCompleted}
	for _, et := range types {
		b.Emit(et, "orchestrator", nil)
	}

	for _, want := range types {
		assert.Equal(t, want, recvEvent(t, sub).Type)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)

	// Double unsubscribe is a no-op.
	b.Unsubscribe(sub)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	fast := b.Subscribe()

	// The slow subscriber never reads; the fast one still receives every
	// event. Emit count stays under the per-subscriber buffer so no event
	// is dropped for either.
	const n = 50
	for i := 0; i < n; i++ {
		b.Emit(EventDaemonHeartbeat, "scheduler", nil)
	}
	for i := 0; i < n; i++ {
		require.NotNil(t, recvEvent(t, fast))
	}
	assert.Eventually(t, func() bool { return len(slow) == n },
		time.Second, 10*time.Millisecond)
}
