package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names. Exported where external tooling (migration, integrity
	// checks) needs the key layout.
	BucketAuditTrail = []byte("audit_trail")

	bucketTasks         = []byte("tasks")
	bucketMemories      = []byte("memories")
	bucketExecutionLog  = []byte("execution_log")
	bucketSelfEvals     = []byte("self_evaluations")
	bucketGraphEntities = []byte("graph_entities")
	bucketGraphRels     = []byte("graph_relationships")
	bucketMarketplace   = []byte("marketplace_tools")
)

// AuditKey returns the audit bucket key for a sequence number. Keys are
// 8-byte big-endian so lexicographic bucket order equals sequence order.
func AuditKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "aegis.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketTasks,
			BucketAuditTrail,
			bucketMemories,
			bucketExecutionLog,
			bucketSelfEvals,
			bucketGraphEntities,
			bucketGraphRels,
			bucketMarketplace,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping performs a read-only round trip.
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketTasks) == nil {
			return fmt.Errorf("tasks bucket missing")
		}
		return nil
	})
}

// Task operations

func (s *BoltStore) PutTask(task *types.Task) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(task.ID), data)
	})
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks() ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	return tasks, err
}

func (s *BoltStore) DeleteTask(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).Delete([]byte(id))
	})
}

// Audit operations

// AppendAudit runs build inside a single write transaction with the current
// sequence tail, then persists the produced entry at nextSeq. The write is
// atomic with respect to the sequence counter.
func (s *BoltStore) AppendAudit(build AuditBuilder) (*types.AuditEntry, error) {
	var entry *types.AuditEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketAuditTrail)

		nextSeq := uint64(1)
		prevHash := ""
		if k, v := b.Cursor().Last(); k != nil {
			var last types.AuditEntry
			if err := json.Unmarshal(v, &last); err != nil {
				return fmt.Errorf("failed to decode audit tail: %w", err)
			}
			nextSeq = last.SequenceNumber + 1
			prevHash = last.Hash
		}

		e, err := build(nextSeq, prevHash)
		if err != nil {
			return err
		}
		if e.SequenceNumber != nextSeq {
			return fmt.Errorf("audit builder produced sequence %d, want %d", e.SequenceNumber, nextSeq)
		}

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := b.Put(AuditKey(nextSeq), data); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AuditRange iterates entries in ascending sequence order. The callback
// returns false to stop early.
func (s *BoltStore) AuditRange(fn func(e *types.AuditEntry) (bool, error)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketAuditTrail).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e types.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			cont, err := fn(&e)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// AuditRecent returns the newest n entries in ascending sequence order. The
// underlying scan is descending and the result is reversed.
func (s *BoltStore) AuditRecent(n int) ([]*types.AuditEntry, error) {
	var entries []*types.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketAuditTrail).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e types.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reverseEntries(entries)
	return entries, nil
}

func (s *BoltStore) AuditByActor(actor string, n int) ([]*types.AuditEntry, error) {
	var entries []*types.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketAuditTrail).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e types.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Actor == actor {
				entries = append(entries, &e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reverseEntries(entries)
	return entries, nil
}

func (s *BoltStore) AuditByDateRange(start, end time.Time, n int) ([]*types.AuditEntry, error) {
	var entries []*types.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketAuditTrail).Cursor()
		for k, v := c.First(); k != nil && len(entries) < n; k, v = c.Next() {
			var e types.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Timestamp.Before(start) || e.Timestamp.After(end) {
				continue
			}
			entries = append(entries, &e)
		}
		return nil
	})
	return entries, err
}

func (s *BoltStore) AuditCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		count = uint64(tx.Bucket(BucketAuditTrail).Stats().KeyN)
		return nil
	})
	return count, err
}

// Memory operations

func (s *BoltStore) PutMemory(m *types.MemoryEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMemories)
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put(memoryKey(m.Namespace, m.ID), data)
	})
}

func (s *BoltStore) ListMemories(namespace string) ([]*types.MemoryEntry, error) {
	var memories []*types.MemoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMemories).Cursor()
		if namespace == "" {
			for k, v := c.First(); k != nil; k, v = c.Next() {
				m, err := decodeMemory(v)
				if err != nil {
					return err
				}
				memories = append(memories, m)
			}
			return nil
		}
		prefix := []byte(namespace + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			m, err := decodeMemory(v)
			if err != nil {
				return err
			}
			memories = append(memories, m)
		}
		return nil
	})
	return memories, err
}

func (s *BoltStore) DeleteMemory(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMemories)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			m, err := decodeMemory(v)
			if err != nil {
				return err
			}
			if m.ID == id {
				return b.Delete(k)
			}
		}
		return nil
	})
}

func memoryKey(namespace, id string) []byte {
	return []byte(namespace + "/" + id)
}

func decodeMemory(v []byte) (*types.MemoryEntry, error) {
	var m types.MemoryEntry
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Execution log operations

func (s *BoltStore) AppendExecution(r *types.ExecutionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutionLog)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(AuditKey(seq), data)
	})
}

func (s *BoltStore) RecentExecutions(n int) ([]*types.ExecutionRecord, error) {
	var records []*types.ExecutionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketExecutionLog).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var r types.ExecutionRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, &r)
		}
		return nil
	})
	return records, err
}

// Self evaluation operations

func (s *BoltStore) PutSelfEvaluation(ev *types.SelfEvaluation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSelfEvals)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return b.Put(AuditKey(seq), data)
	})
}

func (s *BoltStore) RecentSelfEvaluations(n int) ([]*types.SelfEvaluation, error) {
	var evals []*types.SelfEvaluation
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSelfEvals).Cursor()
		for k, v := c.Last(); k != nil && len(evals) < n; k, v = c.Prev() {
			var ev types.SelfEvaluation
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			evals = append(evals, &ev)
		}
		return nil
	})
	return evals, err
}

// Marketplace tool manifest operations

func (s *BoltStore) PutToolManifest(name string, manifest map[string]any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMarketplace).Put([]byte(name), data)
	})
}

func (s *BoltStore) ListToolManifests() (map[string]map[string]any, error) {
	manifests := make(map[string]map[string]any)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMarketplace).ForEach(func(k, v []byte) error {
			var m map[string]any
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			manifests[string(k)] = m
			return nil
		})
	})
	return manifests, err
}

// Knowledge graph operations

func (s *BoltStore) PutGraphEntity(id string, entity map[string]any) error {
	return s.putJSON(bucketGraphEntities, id, entity)
}

func (s *BoltStore) PutGraphRelationship(id string, rel map[string]any) error {
	return s.putJSON(bucketGraphRels, id, rel)
}

func (s *BoltStore) putJSON(bucket []byte, key string, val map[string]any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(val)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func reverseEntries(entries []*types.AuditEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
