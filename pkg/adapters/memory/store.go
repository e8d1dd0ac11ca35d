// Package memory provides in-process adapters: a thred store, a
// channel-backed queue and a static pattern loader. They are the
// defaults for embedding and for tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/weftworks/weft/pkg/domain"
)

// Store implements ports.ThredStore with a mutex-guarded map. Records
// are cloned through JSON on the way in and out, so callers observe the
// same shapes a durable store would produce.
type Store struct {
	mu    sync.RWMutex
	recs  map[string][]byte
	logMu sync.Mutex
	log   []*domain.ThredLogRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{recs: make(map[string][]byte)}
}

// Save persists a copy of the record.
func (s *Store) Save(_ context.Context, t *domain.Thred) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thred %s: %w", t.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[t.ID] = data
	return nil
}

// Load retrieves a copy of the record.
func (s *Store) Load(_ context.Context, id string) (*domain.Thred, error) {
	s.mu.RLock()
	data, ok := s.recs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrThredNotFound
	}
	var t domain.Thred
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thred %s: %w", id, err)
	}
	return &t, nil
}

// Delete removes the record. Deleting an unknown id is a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

// List returns the stored ids in stable order.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.recs))
	for id := range s.recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Append records an audit entry. Store doubles as a ports.LogStore so
// tests can assert on the transition log.
func (s *Store) Append(_ context.Context, rec *domain.ThredLogRecord) error {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.log = append(s.log, rec)
	return nil
}

// LogRecords returns a snapshot of the audit log.
func (s *Store) LogRecords() []*domain.ThredLogRecord {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]*domain.ThredLogRecord, len(s.log))
	copy(out, s.log)
	return out
}
