package featurestore

import (
	"context"
	"fmt"
	"sync"

	"sldpreview/internal/domain"
)

// MemoryStore holds features of a single type in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	schema   *domain.FeatureType
	features []domain.Feature
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// CreateSchema sets the store's feature type, dropping any features held.
func (s *MemoryStore) CreateSchema(ft *domain.FeatureType) error {
	if ft == nil {
		return fmt.Errorf("nil feature type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cp := *ft
	cp.Fields = ft.Fields.Clone()
	s.schema = &cp
	s.features = nil
	return nil
}

// AddFeature appends a feature whose values line up with the schema.
func (s *MemoryStore) AddFeature(f domain.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.schema == nil {
		return fmt.Errorf("add feature %s: no schema", f.ID)
	}
	if len(f.Values) != len(s.schema.Fields) {
		return fmt.Errorf("add feature %s: %d values for %d fields", f.ID, len(f.Values), len(s.schema.Fields))
	}
	values := make([]any, len(f.Values))
	copy(values, f.Values)
	s.features = append(s.features, domain.Feature{ID: f.ID, Values: values})
	return nil
}

func (s *MemoryStore) TypeNames(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.schema == nil {
		return nil, nil
	}
	return []string{s.schema.Name}, nil
}

func (s *MemoryStore) Schema(_ context.Context, typeName string) (*domain.FeatureType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.schema == nil || s.schema.Name != typeName {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	cp := *s.schema
	cp.Fields = s.schema.Fields.Clone()
	return &cp, nil
}

func (s *MemoryStore) Features(_ context.Context, typeName string, limit int) ([]domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.schema == nil || s.schema.Name != typeName {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	n := len(s.features)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Feature, n)
	copy(out, s.features[:n])
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.features = nil
	return nil
}

func (s *MemoryStore) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
