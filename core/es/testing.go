package es

import (
	"context"
	"fmt"
)

// Counter is a minimal model used by tests and examples across the repo.
type Counter struct {
	ID    EntityID `json:"id"`
	Value int      `json:"value"`
}

var _ Model[*Counter] = (*Counter)(nil)

func (c *Counter) EntityID() EntityID { return c.ID }

func (c *Counter) ApplyChange(change any) error {
	switch ch := change.(type) {
	case CounterAdded:
		c.Value += ch.N
	case CounterDoubled:
		c.Value *= 2
	default:
		return fmt.Errorf("counter: unknown change %T", change)
	}
	return nil
}

func (c *Counter) Clone() *Counter {
	cp := *c
	return &cp
}

// CounterAdded adds N (which may be negative) to the counter.
type CounterAdded struct {
	N int `json:"n"`
}

// CounterDoubled doubles the counter.
type CounterDoubled struct{}

// NewCounterCodec returns a codec with all counter change types
// registered.
func NewCounterCodec() *Codec[*Counter] {
	return NewCodec[*Counter](CounterAdded{}, CounterDoubled{})
}

// CounterCommand is the command union of the counter aggregate.
type CounterCommand interface{ counterCommand() }

// CreateCounter brings a new counter into existence with an initial value.
type CreateCounter struct {
	ID   EntityID
	Init int
}

// AddToCounter adds N to an existing counter.
type AddToCounter struct {
	ID EntityID
	N  int
}

// DoubleCounter doubles an existing counter.
type DoubleCounter struct {
	ID EntityID
}

func (CreateCounter) counterCommand() {}
func (AddToCounter) counterCommand()  {}
func (DoubleCounter) counterCommand() {}

// CounterCommandHandler returns the business logic of the counter
// aggregate.
func CounterCommandHandler() CommandHandler[*Counter, CounterCommand] {
	return CommandHandlerFunc[*Counter, CounterCommand](func(ctx context.Context, q Querier[*Counter], cmd CounterCommand) (Event[*Counter], error) {
		var zero Event[*Counter]

		switch c := cmd.(type) {
		case CreateCounter:
			_, found, err := q.FindOne(ctx, c.ID)
			if err != nil {
				return zero, err
			}
			if found {
				return zero, fmt.Errorf("counter %s: %w", c.ID, ErrCantChange)
			}
			return Create(&Counter{ID: c.ID, Value: c.Init}), nil

		case AddToCounter:
			if err := requireCounter(ctx, q, c.ID); err != nil {
				return zero, err
			}
			return Change[*Counter](c.ID, CounterAdded{N: c.N}), nil

		case DoubleCounter:
			if err := requireCounter(ctx, q, c.ID); err != nil {
				return zero, err
			}
			return Change[*Counter](c.ID, CounterDoubled{}), nil

		default:
			return zero, fmt.Errorf("counter: unknown command %T", cmd)
		}
	})
}

func requireCounter(ctx context.Context, q Querier[*Counter], id EntityID) error {
	_, found, err := q.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("counter %s: %w", id, ErrNotFound)
	}
	return nil
}
