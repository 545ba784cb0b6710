package es

import (
	"context"
	"iter"
	"sync"
)

// MemStore is an in-memory CommitStore for tests and local development.
// It is safe for concurrent use. Iteration works on a point-in-time copy,
// so readers never observe a stream mid-append.
type MemStore[M Model[M]] struct {
	mu      sync.RWMutex
	streams map[EntityID][]Commit[M]
	order   []EntityID
}

var _ CommitStore[noopModel] = (*MemStore[noopModel])(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore[M Model[M]]() *MemStore[M] {
	return &MemStore[M]{
		streams: make(map[EntityID][]Commit[M]),
	}
}

func (s *MemStore[M]) Keys(ctx context.Context) iter.Seq2[EntityID, error] {
	s.mu.RLock()
	ids := make([]EntityID, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	return func(yield func(EntityID, error) bool) {
		for _, id := range ids {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(id, nil) {
				return
			}
		}
	}
}

func (s *MemStore[M]) ChangeList(ctx context.Context, id EntityID) iter.Seq2[Commit[M], error] {
	s.mu.RLock()
	stream := make([]Commit[M], len(s.streams[id]))
	copy(stream, s.streams[id])
	s.mu.RUnlock()

	return func(yield func(Commit[M], error) bool) {
		for _, c := range stream {
			if ctx.Err() != nil {
				yield(Commit[M]{}, ctx.Err())
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (s *MemStore[M]) Commit(ctx context.Context, c Commit[M]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Event.IsValid() {
		return ErrInvalidEvent
	}

	id := c.Event.EntityID()

	s.mu.Lock()
	defer s.mu.Unlock()

	stream, exists := s.streams[id]
	if c.Event.IsCreate() {
		if exists {
			return ErrCantChange
		}
		// detach the stored model from the caller's copy
		c.Event = Create(c.Event.Model().Clone())
		s.order = append(s.order, id)
	} else if !exists {
		return ErrCantChange
	}

	s.streams[id] = append(stream, c)
	return nil
}

// Len returns the number of entities in the store.
func (s *MemStore[M]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// noopModel exists only to state the interface assertion above.
type noopModel struct{}

func (noopModel) EntityID() EntityID    { return "" }
func (noopModel) ApplyChange(any) error { return nil }
func (n noopModel) Clone() noopModel    { return n }
