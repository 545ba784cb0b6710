package es

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/Valiuapp/actor-es/core/reflector"
)

const (
	recordKindCreate = "create"
	recordKindChange = "change"
)

// commitRecord is the wire form of a Commit.
type commitRecord struct {
	Kind       string          `json:"kind"`
	EntityID   string          `json:"entity_id"`
	ChangeType string          `json:"change_type,omitempty"`
	Data       json.RawMessage `json:"data"`
	When       time.Time       `json:"when"`
	Who        string          `json:"who,omitempty"`
	Why        string          `json:"why,omitempty"`
}

// Codec translates commits to and from JSON for durable backends.
//
// Create events round-trip through the model type M directly. Change
// payloads are arbitrary Go values, so every change type must be
// registered up front; the codec keys records by the payload's bare type
// name.
type Codec[M Model[M]] struct {
	changes map[string]reflect.Type
}

// NewCodec creates a codec with the given change payload prototypes
// registered.
func NewCodec[M Model[M]](changes ...any) *Codec[M] {
	c := &Codec[M]{changes: make(map[string]reflect.Type)}
	for _, proto := range changes {
		c.RegisterChange(proto)
	}
	return c
}

// RegisterChange registers a change payload type by prototype value.
func (c *Codec[M]) RegisterChange(prototype any) {
	ti := reflector.TypeInfoOf(prototype)
	c.changes[ti.Short] = ti.Type
}

// Encode serializes a commit.
func (c *Codec[M]) Encode(commit Commit[M]) ([]byte, error) {
	rec := commitRecord{
		EntityID: string(commit.Event.EntityID()),
		When:     commit.When,
		Who:      commit.Who,
		Why:      commit.Why,
	}

	var err error
	if commit.Event.IsCreate() {
		rec.Kind = recordKindCreate
		rec.Data, err = json.Marshal(commit.Event.Model())
	} else {
		change := commit.Event.Change()
		ti := reflector.TypeInfoOf(change)
		if _, ok := c.changes[ti.Short]; !ok {
			return nil, fmt.Errorf("es: change type %q not registered", ti.Short)
		}
		rec.Kind = recordKindChange
		rec.ChangeType = ti.Short
		rec.Data, err = json.Marshal(change)
	}
	if err != nil {
		return nil, fmt.Errorf("es: encode commit: %w", err)
	}

	return json.Marshal(rec)
}

// Decode deserializes a commit.
func (c *Codec[M]) Decode(data []byte) (Commit[M], error) {
	var rec commitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Commit[M]{}, fmt.Errorf("es: decode commit: %w", err)
	}

	commit := Commit[M]{When: rec.When, Who: rec.Who, Why: rec.Why}

	switch rec.Kind {
	case recordKindCreate:
		model, err := unmarshalModel[M](rec.Data)
		if err != nil {
			return Commit[M]{}, err
		}
		commit.Event = Create(model)

	case recordKindChange:
		typ, ok := c.changes[rec.ChangeType]
		if !ok {
			return Commit[M]{}, fmt.Errorf("es: change type %q not registered", rec.ChangeType)
		}
		ptr := reflect.New(typ)
		if err := json.Unmarshal(rec.Data, ptr.Interface()); err != nil {
			return Commit[M]{}, fmt.Errorf("es: decode change %q: %w", rec.ChangeType, err)
		}
		commit.Event = Change[M](EntityID(rec.EntityID), ptr.Elem().Interface())

	default:
		return Commit[M]{}, fmt.Errorf("es: unknown commit kind %q", rec.Kind)
	}

	return commit, nil
}

// unmarshalModel allocates an M and fills it from JSON, whether M is a
// struct or a pointer to one.
func unmarshalModel[M Model[M]](data []byte) (M, error) {
	var zero M
	t := reflect.TypeOf(&zero).Elem()

	if t.Kind() == reflect.Pointer {
		v := reflect.New(t.Elem())
		if err := json.Unmarshal(data, v.Interface()); err != nil {
			return zero, fmt.Errorf("es: decode model: %w", err)
		}
		return v.Interface().(M), nil
	}

	v := reflect.New(t)
	if err := json.Unmarshal(data, v.Interface()); err != nil {
		return zero, fmt.Errorf("es: decode model: %w", err)
	}
	return v.Elem().Interface().(M), nil
}
