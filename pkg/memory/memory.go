package memory

import (
	"strings"
	"time"

	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
)

// Recaller is the capability the scheduler and handlers depend on. The
// embedding-backed implementation is an external collaborator; this package
// provides the store-backed one.
type Recaller interface {
	Store(namespace, kind, content string, metadata map[string]any, ttl time.Duration) (*types.MemoryEntry, error)
	Recall(namespace, query string, limit int) ([]*types.MemoryEntry, error)
}

// Stats summarizes the memory store.
type Stats struct {
	Total        int
	ByNamespace  map[string]int
	OldestStored time.Time
}

// Memory is the persistent, namespaced memory layer.
type Memory struct {
	store  storage.Store
	broker *events.Broker
}

// New creates a memory layer over the store.
func New(store storage.Store, broker *events.Broker) *Memory {
	return &Memory{store: store, broker: broker}
}

// Store persists a new memory entry. A zero ttl means the entry never
// expires.
func (m *Memory) Store(namespace, kind, content string, metadata map[string]any, ttl time.Duration) (*types.MemoryEntry, error) {
	entry := &types.MemoryEntry{
		ID:        uuid.New().String(),
		Namespace: namespace,
		Kind:      kind,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		entry.ExpiresAt = entry.CreatedAt.Add(ttl)
	}

	if err := m.store.PutMemory(entry); err != nil {
		return nil, err
	}

	m.broker.Emit(events.EventMemoryStored, "memory", map[string]any{
		"namespace": namespace,
		"kind":      kind,
	})
	return entry, nil
}

// Recall returns up to limit unexpired entries in the namespace whose
// content matches the query. Matching is case-insensitive substring in v1;
// the embedding collaborator replaces this when present.
func (m *Memory) Recall(namespace, query string, limit int) ([]*types.MemoryEntry, error) {
	entries, err := m.store.ListMemories(namespace)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	needle := strings.ToLower(query)
	var out []*types.MemoryEntry
	for _, e := range entries {
		if len(out) >= limit {
			break
		}
		if !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Content), needle) {
			continue
		}
		out = append(out, e)
	}

	m.broker.Emit(events.EventMemoryRecalled, "memory", map[string]any{
		"namespace": namespace,
		"matches":   len(out),
	})
	return out, nil
}

// Stats reports entry counts per namespace.
func (m *Memory) Stats() (*Stats, error) {
	entries, err := m.store.ListMemories("")
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByNamespace: make(map[string]int)}
	for _, e := range entries {
		stats.Total++
		stats.ByNamespace[e.Namespace]++
		if stats.OldestStored.IsZero() || e.CreatedAt.Before(stats.OldestStored) {
			stats.OldestStored = e.CreatedAt
		}
	}
	return stats, nil
}

// Consolidate drops expired entries. It is invoked by the scheduler's
// memory consolidation job.
func (m *Memory) Consolidate() (int, error) {
	entries, err := m.store.ListMemories("")
	if err != nil {
		return 0, err
	}

	now := time.Now()
	dropped := 0
	for _, e := range entries {
		if e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt) {
			continue
		}
		if err := m.store.DeleteMemory(e.ID); err != nil {
			return dropped, err
		}
		dropped++
	}

	if dropped > 0 {
		logger := log.WithComponent("memory")
		logger.Info().
			Int("dropped", dropped).
			Msg("memory consolidation dropped expired entries")
	}
	return dropped, nil
}
