package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// MemoryStore keeps call records in memory. Used when no data directory
// is configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]*protocol.CallRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: make(map[string]*protocol.CallRecord)}
}

func (s *MemoryStore) SaveCall(_ context.Context, rec *protocol.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.calls[rec.CallID] = &cp
	return nil
}

func (s *MemoryStore) GetCall(_ context.Context, callID string) (*protocol.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.calls[callID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, callID)
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ListCalls(_ context.Context, filter Filter) ([]*protocol.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*protocol.CallRecord
	for _, rec := range s.calls {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountCalls(_ context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.calls {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		count++
	}
	return count, nil
}

func (s *MemoryStore) Close() error { return nil }
