package es

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Valiuapp/actor-es/core/actor"
	"github.com/Valiuapp/actor-es/core/bus"
	"github.com/Valiuapp/actor-es/core/sf"
)

// SnapshotResult is the answer to a single-entity query. Found is false
// when the entity has no stream (or did not yet exist at the requested
// instant); that is not an error.
type SnapshotResult[M Model[M]] struct {
	Model M
	Found bool
}

// SnapshotList is the answer to an all-entities query. Entities whose
// replay failed are reported in Failed instead of aborting the whole
// query.
type SnapshotList[M Model[M]] struct {
	Models []M
	Failed map[EntityID]error
}

// ---- mailbox messages ----

type commitMsg[M Model[M]] struct{ c Commit[M] }

type snapshotMsg struct{ id EntityID }

type snapshotAtMsg struct {
	id    EntityID
	until time.Time
}

type snapshotListMsg struct{}

// Store wraps a CommitStore backend in a mailbox actor. All access goes
// through the mailbox; the handlers hand the actual backend I/O to the
// actor's scheduler so the mailbox keeps draining while a commit or
// replay is in flight.
//
// Every durable commit is published on the store's event topic
// ("<name>-events"), strictly after the backend acknowledged the append.
type Store[M Model[M]] struct {
	name    string
	topic   string
	backend CommitStore[M]
	bus     *bus.Bus[Commit[M]]
	flight  *sf.Singleflight[SnapshotResult[M]]
	log     *slog.Logger
	metrics StoreMetrics
	actor   *actor.BaseActor
}

// StoreOption configures a Store.
type StoreOption[M Model[M]] func(*storeConfig[M])

type storeConfig[M Model[M]] struct {
	logger       *slog.Logger
	bus          *bus.Bus[Commit[M]]
	metrics      StoreMetrics
	actorMetrics actor.ActorMetrics
	mailboxSize  int
}

// WithStoreLogger sets the logger.
func WithStoreLogger[M Model[M]](l *slog.Logger) StoreOption[M] {
	return func(c *storeConfig[M]) { c.logger = l }
}

// WithStoreBus sets the event bus commits are published on. Pass a shared
// bus to let several stores feed one set of subscribers.
func WithStoreBus[M Model[M]](b *bus.Bus[Commit[M]]) StoreOption[M] {
	return func(c *storeConfig[M]) { c.bus = b }
}

// WithStoreMetrics sets the store instrumentation.
func WithStoreMetrics[M Model[M]](m StoreMetrics) StoreOption[M] {
	return func(c *storeConfig[M]) { c.metrics = m }
}

// WithStoreActorMetrics sets the instrumentation of the underlying actor.
func WithStoreActorMetrics[M Model[M]](m actor.ActorMetrics) StoreOption[M] {
	return func(c *storeConfig[M]) { c.actorMetrics = m }
}

// WithStoreMailboxSize sets the mailbox capacity of the dispatcher actor.
func WithStoreMailboxSize[M Model[M]](n int) StoreOption[M] {
	return func(c *storeConfig[M]) { c.mailboxSize = n }
}

// NewStore starts a store dispatcher named name on top of backend.
// The actor runs until Stop or until ctx is cancelled.
func NewStore[M Model[M]](ctx context.Context, name string, backend CommitStore[M], opts ...StoreOption[M]) *Store[M] {
	cfg := &storeConfig[M]{
		logger:  slog.Default(),
		metrics: NopStoreMetrics(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.bus == nil {
		cfg.bus = bus.New[Commit[M]](bus.WithLogger(cfg.logger))
	}

	s := &Store[M]{
		name:    name,
		topic:   name + "-events",
		backend: backend,
		bus:     cfg.bus,
		flight:  sf.New[SnapshotResult[M]](),
		log:     cfg.logger.With(slog.String("store", name)),
		metrics: cfg.metrics,
	}

	s.actor = actor.New(actor.Options{
		ID:          "store/" + name,
		Context:     ctx,
		Logger:      cfg.logger,
		MailboxSize: cfg.mailboxSize,
		Metrics:     cfg.actorMetrics,
	}, actor.TypedHandlers(
		actor.HandleRequest[commitMsg[M], Commit[M]](s.handleCommit),
		actor.HandleRequest[snapshotMsg, SnapshotResult[M]](s.handleSnapshot),
		actor.HandleRequest[snapshotAtMsg, SnapshotResult[M]](s.handleSnapshotAt),
		actor.HandleRequest[snapshotListMsg, SnapshotList[M]](s.handleSnapshotList),
	))

	return s
}

// Name returns the store name.
func (s *Store[M]) Name() string { return s.name }

// Topic returns the topic commits are published on.
func (s *Store[M]) Topic() string { return s.topic }

// Stop shuts the dispatcher down and waits for in-flight work.
func (s *Store[M]) Stop() { s.actor.Stop() }

// ---- client surface ----

// Commit appends c durably and returns it once persisted and published.
func (s *Store[M]) Commit(ctx context.Context, c Commit[M]) (Commit[M], error) {
	res, err := actor.Request[commitMsg[M], Commit[M]](ctx, s.actor, commitMsg[M]{c: c})
	if err != nil {
		return Commit[M]{}, err
	}
	return *res, nil
}

// Snapshot replays one entity to its current state.
func (s *Store[M]) Snapshot(ctx context.Context, id EntityID) (M, bool, error) {
	res, err := actor.Request[snapshotMsg, SnapshotResult[M]](ctx, s.actor, snapshotMsg{id: id})
	if err != nil {
		var zero M
		return zero, false, err
	}
	return res.Model, res.Found, nil
}

// SnapshotAt replays one entity to its state at the given instant.
func (s *Store[M]) SnapshotAt(ctx context.Context, id EntityID, until time.Time) (M, bool, error) {
	res, err := actor.Request[snapshotAtMsg, SnapshotResult[M]](ctx, s.actor, snapshotAtMsg{id: id, until: until})
	if err != nil {
		var zero M
		return zero, false, err
	}
	return res.Model, res.Found, nil
}

// SnapshotList replays every entity in the store. Entities that fail to
// replay are reported per id; the others are still returned.
func (s *Store[M]) SnapshotList(ctx context.Context) ([]M, map[EntityID]error, error) {
	res, err := actor.Request[snapshotListMsg, SnapshotList[M]](ctx, s.actor, snapshotListMsg{})
	if err != nil {
		return nil, nil, err
	}
	return res.Models, res.Failed, nil
}

// Subscribe attaches a subscriber to the store's event topic.
func (s *Store[M]) Subscribe(ctx context.Context, opts ...bus.SubscribeOption[Commit[M]]) (*bus.Subscription[Commit[M]], error) {
	return s.bus.Subscribe(ctx, s.topic, opts...)
}

// SubscribeEntity attaches a subscriber that only sees commits of one
// entity.
func (s *Store[M]) SubscribeEntity(ctx context.Context, id EntityID) (*bus.Subscription[Commit[M]], error) {
	return s.bus.Subscribe(ctx, s.topic, bus.WithFilter(func(c Commit[M]) bool {
		return c.Event.EntityID() == id
	}))
}

// ---- handlers ----

func (s *Store[M]) handleCommit(hc actor.HandlerCtx, m commitMsg[M]) (*Commit[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		tmr := s.metrics.CommitDuration(s.name)
		err := s.backend.Commit(hc, m.c)
		tmr.ObserveDuration()
		s.metrics.CommitProcessed(s.name, err == nil)

		if err != nil {
			s.log.Warn("commit rejected",
				slog.String("entity_id", m.c.Event.EntityID().String()),
				slog.Any("error", err))
			reply(nil, err)
			return
		}

		// publish only what is durable
		if err := s.bus.Publish(s.topic, m.c); err != nil {
			s.log.Warn("publish after commit failed", slog.Any("error", err))
		} else {
			s.metrics.EventPublished(s.name)
		}

		c := m.c
		reply(&c, nil)
	})
	return nil, nil
}

func (s *Store[M]) handleSnapshot(hc actor.HandlerCtx, m snapshotMsg) (*SnapshotResult[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		res, shared, err := s.flight.Do(m.id.String(), func() (SnapshotResult[M], error) {
			return s.replay(hc, m.id)
		})
		if err != nil {
			reply(nil, err)
			return
		}
		// deduplicated callers must not alias one model
		if shared && res.Found {
			res.Model = res.Model.Clone()
		}
		reply(&res, nil)
	})
	return nil, nil
}

func (s *Store[M]) handleSnapshotAt(hc actor.HandlerCtx, m snapshotAtMsg) (*SnapshotResult[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		tt, err := Get(hc, s.backend, m.id)
		if errors.Is(err, ErrNotFound) {
			reply(&SnapshotResult[M]{}, nil)
			return
		}
		if err != nil {
			reply(nil, err)
			return
		}
		model, err := tt.TravelTo(m.until)
		if errors.Is(err, ErrNotFound) {
			reply(&SnapshotResult[M]{}, nil)
			return
		}
		if err != nil {
			reply(nil, err)
			return
		}
		reply(&SnapshotResult[M]{Model: model, Found: true}, nil)
	})
	return nil, nil
}

func (s *Store[M]) handleSnapshotList(hc actor.HandlerCtx, _ snapshotListMsg) (*SnapshotList[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		out := SnapshotList[M]{Failed: make(map[EntityID]error)}
		for id, err := range s.backend.Keys(hc) {
			if err != nil {
				reply(nil, err)
				return
			}
			res, err := s.replay(hc, id)
			if err != nil {
				out.Failed[id] = err
				continue
			}
			if res.Found {
				out.Models = append(out.Models, res.Model)
			}
		}
		reply(&out, nil)
	})
	return nil, nil
}

// replay folds one entity's stream. A missing stream is not an error.
func (s *Store[M]) replay(ctx context.Context, id EntityID) (SnapshotResult[M], error) {
	defer s.metrics.SnapshotDuration(s.name).ObserveDuration()

	tt, err := Get(ctx, s.backend, id)
	if errors.Is(err, ErrNotFound) {
		return SnapshotResult[M]{}, nil
	}
	if err != nil {
		return SnapshotResult[M]{}, err
	}

	model, err := tt.ToPresent()
	if err != nil {
		return SnapshotResult[M]{}, err
	}
	s.metrics.ReplayLength(s.name, tt.Folded())

	return SnapshotResult[M]{Model: model, Found: true}, nil
}
