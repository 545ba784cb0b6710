package es

// Event is the payload of a Commit. It is a two-armed union: a Create
// event carries the full initial model, a Change event carries the target
// entity id and a delta payload. The zero Event is invalid.
type Event[M Model[M]] struct {
	kind   eventKind
	model  M
	id     EntityID
	change any
}

type eventKind uint8

const (
	eventInvalid eventKind = iota
	eventCreate
	eventChange
)

// Create builds the event that brings a new entity into existence.
// It must be the first commit of a stream.
func Create[M Model[M]](model M) Event[M] {
	return Event[M]{kind: eventCreate, model: model}
}

// Change builds a delta event against an existing entity.
func Change[M Model[M]](id EntityID, change any) Event[M] {
	return Event[M]{kind: eventChange, id: id, change: change}
}

// IsCreate reports whether the event is a Create.
func (e Event[M]) IsCreate() bool { return e.kind == eventCreate }

// IsValid reports whether the event was built by Create or Change.
func (e Event[M]) IsValid() bool { return e.kind != eventInvalid }

// Model returns the initial model of a Create event.
// For Change events it returns the zero value.
func (e Event[M]) Model() M { return e.model }

// Change returns the delta payload of a Change event, nil for Create.
func (e Event[M]) Change() any { return e.change }

// EntityID returns the entity the event belongs to.
func (e Event[M]) EntityID() EntityID {
	if e.kind == eventCreate {
		return e.model.EntityID()
	}
	return e.id
}
