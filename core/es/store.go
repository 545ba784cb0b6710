package es

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrNotFound is returned when an entity has no commit stream.
	ErrNotFound = errors.New("es: entity not found")

	// ErrCantChange is returned when a commit would break the stream shape:
	// a Change without a prior Create, or a second Create on an existing
	// stream.
	ErrCantChange = errors.New("es: change cannot be applied")

	// ErrCorruptStream is returned when a replay encounters a stream that
	// violates the Create-then-Changes shape.
	ErrCorruptStream = errors.New("es: corrupt commit stream")

	// ErrInvalidEvent is returned when a zero-valued event is committed.
	ErrInvalidEvent = errors.New("es: invalid event")
)

// CommitStore is an append-only log of commits, keyed by entity.
// Implementations must enforce the stream shape: the first commit of a
// stream is a Create, every later one is a Change (ErrCantChange
// otherwise).
type CommitStore[M Model[M]] interface {
	// Keys yields the ids of all entities that have a stream, in first-seen
	// order. Iteration errors are yielded in the second position.
	Keys(ctx context.Context) iter.Seq2[EntityID, error]

	// ChangeList yields the commit stream of one entity in append order.
	// An entity with no stream yields nothing.
	ChangeList(ctx context.Context, id EntityID) iter.Seq2[Commit[M], error]

	// Commit appends c to the stream of its entity.
	Commit(ctx context.Context, c Commit[M]) error
}

// Get opens a replay over the entity's stream. The caller owns the
// returned TimeTraveler and must finish it with ToPresent, TravelTo or
// Close.
func Get[M Model[M]](ctx context.Context, store CommitStore[M], id EntityID) (*TimeTraveler[M], error) {
	next, stop := iter.Pull2(store.ChangeList(ctx, id))

	first, err, ok := next()
	if !ok {
		stop()
		return nil, ErrNotFound
	}
	if err != nil {
		stop()
		return nil, err
	}
	if !first.Event.IsCreate() {
		stop()
		return nil, ErrCorruptStream
	}

	return &TimeTraveler[M]{
		model:   first.Event.Model().Clone(),
		created: first.When,
		next:    next,
		stop:    stop,
	}, nil
}

// Snapshot replays the entity's full stream and returns its current state.
func Snapshot[M Model[M]](ctx context.Context, store CommitStore[M], id EntityID) (M, error) {
	tt, err := Get(ctx, store, id)
	if err != nil {
		var zero M
		return zero, err
	}
	return tt.ToPresent()
}

// Entities returns the ids of all entities in the store.
func Entities[M Model[M]](ctx context.Context, store CommitStore[M]) ([]EntityID, error) {
	var ids []EntityID
	for id, err := range store.Keys(ctx) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
