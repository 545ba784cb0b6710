package es

import (
	"context"
	"log/slog"
	"time"

	"github.com/Valiuapp/actor-es/core/actor"
	"github.com/Valiuapp/actor-es/core/perkey"
)

// Querier gives command handlers read access to current state. Reads go
// through the store dispatcher, so a handler that just committed under
// the command lock sees its own write.
type Querier[M Model[M]] interface {
	FindOne(ctx context.Context, id EntityID) (M, bool, error)
	FindAll(ctx context.Context) ([]M, map[EntityID]error, error)
}

// CommandHandler holds the business logic of one aggregate type. It
// inspects current state through q, decides, and returns the event to
// commit. Returning a zero Event with a nil error means the command is a
// no-op.
//
// The dispatcher guarantees handlers for one aggregate type never run
// concurrently, and that the returned event is durable before the command
// is acknowledged.
type CommandHandler[M Model[M], C any] interface {
	HandleCommand(ctx context.Context, q Querier[M], cmd C) (Event[M], error)
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc[M Model[M], C any] func(ctx context.Context, q Querier[M], cmd C) (Event[M], error)

func (f CommandHandlerFunc[M, C]) HandleCommand(ctx context.Context, q Querier[M], cmd C) (Event[M], error) {
	return f(ctx, q, cmd)
}

// ---- mailbox messages ----

// Command wraps a business command with optional attribution, carried
// into the resulting commit's Who and Why fields.
type Command[C any] struct {
	Cmd C
	Who string
	Why string
}

// QueryOne asks for the current state of one entity.
type QueryOne struct{ ID EntityID }

// QueryAt asks for the state of one entity at an instant in the past.
type QueryAt struct {
	ID    EntityID
	Until time.Time
}

// QueryAll asks for the current state of every entity.
type QueryAll struct{}

// Entity is the dispatcher owning the business logic of one aggregate
// type. Commands run the handler and persist the resulting event under a
// per-type lock; the caller is only acknowledged once the commit is
// durable. Queries pass straight through to the store.
type Entity[M Model[M], C any] struct {
	name    string
	store   *Store[M]
	handler CommandHandler[M, C]
	lock    *perkey.Scheduler[string]
	ownLock bool
	log     *slog.Logger
	actor   *actor.BaseActor
}

// EntityOption configures an Entity.
type EntityOption func(*entityConfig)

type entityConfig struct {
	logger       *slog.Logger
	lock         *perkey.Scheduler[string]
	actorMetrics actor.ActorMetrics
	mailboxSize  int
}

// WithEntityLogger sets the logger.
func WithEntityLogger(l *slog.Logger) EntityOption {
	return func(c *entityConfig) { c.logger = l }
}

// WithEntityLock shares one command lock between several entities. The
// scheduler keys by entity name, so sharing still serializes per type.
func WithEntityLock(s *perkey.Scheduler[string]) EntityOption {
	return func(c *entityConfig) { c.lock = s }
}

// WithEntityActorMetrics sets the instrumentation of the underlying actor.
func WithEntityActorMetrics(m actor.ActorMetrics) EntityOption {
	return func(c *entityConfig) { c.actorMetrics = m }
}

// WithEntityMailboxSize sets the mailbox capacity of the dispatcher actor.
func WithEntityMailboxSize(n int) EntityOption {
	return func(c *entityConfig) { c.mailboxSize = n }
}

// NewEntity starts an entity dispatcher named name on top of store.
func NewEntity[M Model[M], C any](ctx context.Context, name string, store *Store[M], handler CommandHandler[M, C], opts ...EntityOption) *Entity[M, C] {
	cfg := &entityConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Entity[M, C]{
		name:    name,
		store:   store,
		handler: handler,
		lock:    cfg.lock,
		log:     cfg.logger.With(slog.String("entity", name)),
	}
	if e.lock == nil {
		e.lock = perkey.New[string]()
		e.ownLock = true
	}

	e.actor = actor.New(actor.Options{
		ID:          "entity/" + name,
		Context:     ctx,
		Logger:      cfg.logger,
		MailboxSize: cfg.mailboxSize,
		Metrics:     cfg.actorMetrics,
	}, actor.TypedHandlers(
		actor.HandleRequest[Command[C], Commit[M]](e.handleCommand),
		actor.HandleRequest[QueryOne, SnapshotResult[M]](e.handleQueryOne),
		actor.HandleRequest[QueryAt, SnapshotResult[M]](e.handleQueryAt),
		actor.HandleRequest[QueryAll, SnapshotList[M]](e.handleQueryAll),
	))

	return e
}

// Name returns the aggregate type name.
func (e *Entity[M, C]) Name() string { return e.name }

// Ref returns the dispatcher's mailbox address, for Manager registration
// or direct requests.
func (e *Entity[M, C]) Ref() *actor.BaseActor { return e.actor }

// Registrant describes an entity dispatcher to the Manager.
type Registrant struct {
	EntityName string
	Ref        actor.Actor
}

// Registrant returns the registration record for a Manager.
func (e *Entity[M, C]) Registrant() Registrant {
	return Registrant{EntityName: e.name, Ref: e.actor}
}

// Stop shuts the dispatcher down and waits for in-flight commands.
func (e *Entity[M, C]) Stop() {
	e.actor.Stop()
	if e.ownLock {
		e.lock.Close()
	}
}

func (e *Entity[M, C]) querier() Querier[M] {
	return storeQuerier[M]{store: e.store}
}

// ---- handlers ----

func (e *Entity[M, C]) handleCommand(hc actor.HandlerCtx, m Command[C]) (*Commit[M], error) {
	reply := hc.Detach()

	// Enqueue on the lock from the mailbox goroutine itself, so commands
	// enter the critical section in mailbox arrival order. Only the wait
	// for the result is handed off.
	var committed Commit[M]
	done, err := e.lock.Submit(e.name, func() error {
		event, err := e.handler.HandleCommand(hc, e.querier(), m.Cmd)
		if err != nil {
			return err
		}
		if !event.IsValid() {
			// handler decided there is nothing to record
			return nil
		}

		var copts []CommitOption
		if m.Who != "" {
			copts = append(copts, WithAuthor(m.Who))
		}
		if m.Why != "" {
			copts = append(copts, WithReason(m.Why))
		}

		committed, err = e.store.Commit(hc, NewCommit(event, copts...))
		return err
	})
	if err != nil {
		reply(nil, err)
		return nil, nil
	}

	hc.Schedule(func() {
		if err := <-done; err != nil {
			e.log.Warn("command failed", slog.Any("error", err))
			reply(nil, err)
			return
		}
		reply(&committed, nil)
	})
	return nil, nil
}

func (e *Entity[M, C]) handleQueryOne(hc actor.HandlerCtx, q QueryOne) (*SnapshotResult[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		model, found, err := e.store.Snapshot(hc, q.ID)
		if err != nil {
			reply(nil, err)
			return
		}
		reply(&SnapshotResult[M]{Model: model, Found: found}, nil)
	})
	return nil, nil
}

func (e *Entity[M, C]) handleQueryAt(hc actor.HandlerCtx, q QueryAt) (*SnapshotResult[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		model, found, err := e.store.SnapshotAt(hc, q.ID, q.Until)
		if err != nil {
			reply(nil, err)
			return
		}
		reply(&SnapshotResult[M]{Model: model, Found: found}, nil)
	})
	return nil, nil
}

func (e *Entity[M, C]) handleQueryAll(hc actor.HandlerCtx, _ QueryAll) (*SnapshotList[M], error) {
	reply := hc.Detach()
	hc.Schedule(func() {
		models, failed, err := e.store.SnapshotList(hc)
		if err != nil {
			reply(nil, err)
			return
		}
		reply(&SnapshotList[M]{Models: models, Failed: failed}, nil)
	})
	return nil, nil
}

// storeQuerier is the Querier handed to command handlers.
type storeQuerier[M Model[M]] struct {
	store *Store[M]
}

func (q storeQuerier[M]) FindOne(ctx context.Context, id EntityID) (M, bool, error) {
	return q.store.Snapshot(ctx, id)
}

func (q storeQuerier[M]) FindAll(ctx context.Context) ([]M, map[EntityID]error, error) {
	return q.store.SnapshotList(ctx)
}

var _ Querier[noopModel] = storeQuerier[noopModel]{}
