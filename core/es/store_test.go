package es

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustCommit(t *testing.T, s CommitStore[*Counter], c Commit[*Counter]) {
	t.Helper()
	require.NoError(t, s.Commit(t.Context(), c))
}

func TestMemStore_fold(t *testing.T) {
	s := NewMemStore[*Counter]()
	id := NewEntityID()

	mustCommit(t, s, NewCommit(Create(&Counter{ID: id, Value: 0})))
	for _, n := range []int{15, 5, -9, 31} {
		mustCommit(t, s, NewCommit(Change[*Counter](id, CounterAdded{N: n})))
	}

	c, err := Snapshot(t.Context(), s, id)
	require.NoError(t, err)
	require.Equal(t, 42, c.Value)
}

func TestMemStore_not_found(t *testing.T) {
	s := NewMemStore[*Counter]()

	_, err := Snapshot(t.Context(), s, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_change_before_create(t *testing.T) {
	s := NewMemStore[*Counter]()

	err := s.Commit(t.Context(), NewCommit(Change[*Counter]("ghost", CounterAdded{N: 1})))
	require.ErrorIs(t, err, ErrCantChange)
}

func TestMemStore_double_create(t *testing.T) {
	s := NewMemStore[*Counter]()
	id := NewEntityID()

	mustCommit(t, s, NewCommit(Create(&Counter{ID: id})))
	err := s.Commit(t.Context(), NewCommit(Create(&Counter{ID: id})))
	require.ErrorIs(t, err, ErrCantChange)
}

func TestMemStore_invalid_event(t *testing.T) {
	s := NewMemStore[*Counter]()

	err := s.Commit(t.Context(), NewCommit(Event[*Counter]{}))
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestMemStore_stored_model_is_detached(t *testing.T) {
	s := NewMemStore[*Counter]()
	id := NewEntityID()

	model := &Counter{ID: id, Value: 1}
	mustCommit(t, s, NewCommit(Create(model)))

	// mutating the caller's copy must not leak into the stream
	model.Value = 999

	c, err := Snapshot(t.Context(), s, id)
	require.NoError(t, err)
	require.Equal(t, 1, c.Value)
}

func TestMemStore_keys_in_first_seen_order(t *testing.T) {
	s := NewMemStore[*Counter]()

	want := []EntityID{"a", "b", "c"}
	for _, id := range want {
		mustCommit(t, s, NewCommit(Create(&Counter{ID: id})))
	}

	ids, err := Entities(t.Context(), s)
	require.NoError(t, err)
	require.Equal(t, want, ids)
}

func TestTimeTraveler_travel_to(t *testing.T) {
	s := NewMemStore[*Counter]()
	id := NewEntityID()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mustCommit(t, s, NewCommit(Create(&Counter{ID: id, Value: 10}), WithTime(t0)))
	mustCommit(t, s, NewCommit(Change[*Counter](id, CounterAdded{N: 5}), WithTime(t0.Add(time.Hour))))
	mustCommit(t, s, NewCommit(Change[*Counter](id, CounterAdded{N: 7}), WithTime(t0.Add(2*time.Hour))))

	tt, err := Get(t.Context(), s, id)
	require.NoError(t, err)

	// between the first and second change
	c, err := tt.TravelTo(t0.Add(90 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, 15, c.Value)
}

func TestTimeTraveler_before_creation(t *testing.T) {
	s := NewMemStore[*Counter]()
	id := NewEntityID()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mustCommit(t, s, NewCommit(Create(&Counter{ID: id, Value: 10}), WithTime(t0)))

	tt, err := Get(t.Context(), s, id)
	require.NoError(t, err)

	_, err = tt.TravelTo(t0.Add(-time.Minute))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTimeTraveler_to_present_counts_folds(t *testing.T) {
	s := NewMemStore[*Counter]()
	id := NewEntityID()

	mustCommit(t, s, NewCommit(Create(&Counter{ID: id})))
	mustCommit(t, s, NewCommit(Change[*Counter](id, CounterAdded{N: 1})))
	mustCommit(t, s, NewCommit(Change[*Counter](id, CounterAdded{N: 2})))

	tt, err := Get(t.Context(), s, id)
	require.NoError(t, err)

	c, err := tt.ToPresent()
	require.NoError(t, err)
	require.Equal(t, 3, c.Value)
	require.Equal(t, 3, tt.Folded())
}
