package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
)

// GenesisHash is the previous-hash value of the first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// VerifyResult reports the outcome of a chain verification pass.
type VerifyResult struct {
	Valid        bool
	BrokenAt     uint64 // sequence number of the earliest bad row, 0 when valid
	TotalEntries uint64
}

// Ledger is the append-only hash-chained audit trail. Writes are serialized:
// one writer at a time per ledger instance.
type Ledger struct {
	store storage.Store
	mu    sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// Record appends a new entry. On error the action must not be considered
// recorded; callers treat a write failure as fatal to the operation.
func (l *Ledger) Record(actor, action, target string, details map[string]any) (*types.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if details == nil {
		details = map[string]any{}
	}

	entry, err := l.store.AppendAudit(func(nextSeq uint64, prevHash string) (*types.AuditEntry, error) {
		if prevHash == "" {
			prevHash = GenesisHash
		}
		e := &types.AuditEntry{
			ID:             uuid.New().String(),
			SequenceNumber: nextSeq,
			Timestamp:      time.Now().UTC(),
			Actor:          actor,
			Action:         action,
			Target:         target,
			Details:        details,
			PreviousHash:   prevHash,
		}
		hash, err := computeHash(e)
		if err != nil {
			return nil, err
		}
		e.Hash = hash
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit append failed: %w", err)
	}

	logger := log.WithComponent("audit")
	logger.Debug().
		Uint64("seq", entry.SequenceNumber).
		Str("actor", actor).
		Str("action", action).
		Msg("audit entry recorded")
	return entry, nil
}

// VerifyChain replays every persisted row in ascending sequence, checks the
// previous-hash linkage, recomputes each hash, and reports the earliest
// mismatch. Verification never repairs; an integrity violation is surfaced
// and left in place.
func (l *Ledger) VerifyChain() (*VerifyResult, error) {
	result := &VerifyResult{Valid: true}
	running := GenesisHash
	var expectSeq uint64 = 1

	err := l.store.AuditRange(func(e *types.AuditEntry) (bool, error) {
		result.TotalEntries++

		if e.SequenceNumber != expectSeq {
			result.Valid = false
			result.BrokenAt = e.SequenceNumber
			return false, nil
		}
		if e.PreviousHash != running {
			result.Valid = false
			result.BrokenAt = e.SequenceNumber
			return false, nil
		}
		recomputed, err := computeHash(e)
		if err != nil {
			return false, err
		}
		if recomputed != e.Hash {
			result.Valid = false
			result.BrokenAt = e.SequenceNumber
			return false, nil
		}

		running = e.Hash
		expectSeq++
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}

	if !result.Valid {
		// Count the remainder so TotalEntries is accurate even on early stop.
		if count, err := l.store.AuditCount(); err == nil {
			result.TotalEntries = count
		}
	}
	return result, nil
}

// Recent returns the newest n entries in ascending sequence order.
func (l *Ledger) Recent(n int) ([]*types.AuditEntry, error) {
	return l.store.AuditRecent(n)
}

// ByActor returns up to n entries recorded by the given actor.
func (l *Ledger) ByActor(actor string, n int) ([]*types.AuditEntry, error) {
	return l.store.AuditByActor(actor, n)
}

// ByDateRange returns up to n entries whose timestamps fall in [start, end].
func (l *Ledger) ByDateRange(start, end time.Time, n int) ([]*types.AuditEntry, error) {
	return l.store.AuditByDateRange(start, end, n)
}

// Count returns the number of persisted entries.
func (l *Ledger) Count() (uint64, error) {
	return l.store.AuditCount()
}

// computeHash derives the entry hash over the canonical form
// previousHash|sequence|timestamp|actor|action|target|details-json.
// Map keys in details are sorted by encoding/json, so the form is stable.
func computeHash(e *types.AuditEntry) (string, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize details: %w", err)
	}

	var b strings.Builder
	b.WriteString(e.PreviousHash)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d", e.SequenceNumber)
	b.WriteString("|")
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteString("|")
	b.WriteString(e.Actor)
	b.WriteString("|")
	b.WriteString(e.Action)
	b.WriteString("|")
	b.WriteString(e.Target)
	b.WriteString("|")
	b.Write(details)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
