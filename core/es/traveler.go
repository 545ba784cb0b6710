package es

import (
	"fmt"
	"time"
)

// TimeTraveler folds a commit stream into a model, either up to a point in
// time or all the way to the present. It is single-use: after ToPresent,
// TravelTo or Close it is exhausted.
type TimeTraveler[M Model[M]] struct {
	model   M
	created time.Time
	next    func() (Commit[M], error, bool)
	stop    func()
	done    bool
	folded  int
}

// Folded returns the number of commits folded so far, including the
// initial Create.
func (t *TimeTraveler[M]) Folded() int { return t.folded + 1 }

// TravelTo folds the stream up to and including commits stamped at or
// before until, and returns the model as it was at that instant.
// ErrNotFound is returned when the entity did not yet exist at until.
func (t *TimeTraveler[M]) TravelTo(until time.Time) (M, error) {
	var zero M
	if t.done {
		return zero, fmt.Errorf("time traveler already exhausted")
	}
	defer t.Close()

	if t.created.After(until) {
		return zero, ErrNotFound
	}

	for {
		c, err, ok := t.next()
		if !ok {
			return t.model, nil
		}
		if err != nil {
			return zero, err
		}
		if c.Event.IsCreate() {
			return zero, ErrCorruptStream
		}
		if c.When.After(until) {
			return t.model, nil
		}
		if err := t.model.ApplyChange(c.Event.Change()); err != nil {
			return zero, err
		}
		t.folded++
	}
}

// ToPresent folds the whole stream and returns the current state.
func (t *TimeTraveler[M]) ToPresent() (M, error) {
	var zero M
	if t.done {
		return zero, fmt.Errorf("time traveler already exhausted")
	}
	defer t.Close()

	for {
		c, err, ok := t.next()
		if !ok {
			return t.model, nil
		}
		if err != nil {
			return zero, err
		}
		if c.Event.IsCreate() {
			return zero, ErrCorruptStream
		}
		if err := t.model.ApplyChange(c.Event.Change()); err != nil {
			return zero, err
		}
		t.folded++
	}
}

// Close releases the underlying stream. Safe to call multiple times.
func (t *TimeTraveler[M]) Close() {
	if t.done {
		return
	}
	t.done = true
	t.stop()
}
