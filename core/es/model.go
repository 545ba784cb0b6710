package es

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// EntityID identifies one entity instance within an aggregate type.
type EntityID string

func (id EntityID) String() string { return string(id) }

// NewEntityID returns a new unique EntityID.
func NewEntityID() EntityID {
	return EntityID(gonanoid.Must())
}

// Model is the state of one entity, rebuilt by replaying its commit stream.
//
// The type parameter is self-referential: a model type declares
// `type Account struct{...}` and implements `Model[Account]`. Clone must
// return a deep copy; replays and snapshots rely on it so that no two
// callers ever share mutable state.
type Model[M any] interface {
	// EntityID returns the identity of this instance.
	EntityID() EntityID

	// ApplyChange mutates the model in place according to a change payload
	// previously recorded by a Change event. Unknown payload types must
	// return an error.
	ApplyChange(change any) error

	// Clone returns an independent deep copy of the model.
	Clone() M
}
