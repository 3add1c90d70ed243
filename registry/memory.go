package registry

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps records in process memory. It backs dry runs and the
// comparison harness, which never touches the persistent registry.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[Name]*Record
	steps   map[string]map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[Name]*Record),
		steps:   make(map[string]map[string]bool),
	}
}

func (s *MemoryStore) Get(_ context.Context, network string, name Name) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[network][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Put(_ context.Context, network string, rec *Record) error {
	if err := rec.Name.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[network] == nil {
		s.records[network] = make(map[Name]*Record)
	}
	if _, ok := s.records[network][rec.Name]; ok {
		return fmt.Errorf("%w: %s on %s", ErrExists, rec.Name, network)
	}
	s.records[network][rec.Name] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, network string, name Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[network][name]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
	}
	delete(s.records[network], name)
	return nil
}

func (s *MemoryStore) List(_ context.Context, network string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records[network]))
	for _, rec := range s.records[network] {
		records = append(records, cloneRecord(rec))
	}
	sortRecords(records)
	return records, nil
}

func (s *MemoryStore) StepDone(_ context.Context, network, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps[network][id], nil
}

func (s *MemoryStore) MarkStep(_ context.Context, network, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.steps[network] == nil {
		s.steps[network] = make(map[string]bool)
	}
	s.steps[network][id] = true
	return nil
}

func (s *MemoryStore) Close() error { return nil }
