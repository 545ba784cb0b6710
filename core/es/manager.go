package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Valiuapp/actor-es/core/actor"
)

var (
	// ErrEntityNotRegistered is returned when a command or query names an
	// aggregate type the manager does not know.
	ErrEntityNotRegistered = errors.New("es: entity not registered")

	// ErrAlreadyRegistered is returned when a second dispatcher registers
	// under an existing name.
	ErrAlreadyRegistered = errors.New("es: entity already registered")
)

// Manager is a registry of entity dispatchers, keyed by aggregate type
// name. It routes commands and queries to the right mailbox; callers
// address aggregates by name instead of holding dispatcher references.
type Manager struct {
	mu       sync.RWMutex
	entities map[string]actor.Actor
	log      *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	logger *slog.Logger
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) { c.logger = l }
}

// NewManager creates an empty registry.
func NewManager(opts ...ManagerOption) *Manager {
	cfg := &managerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Manager{
		entities: make(map[string]actor.Actor),
		log:      cfg.logger.With(slog.String("component", "manager")),
	}
}

// Register adds an entity dispatcher under its name.
func (m *Manager) Register(r Registrant) error {
	if r.EntityName == "" || r.Ref == nil {
		return fmt.Errorf("es: invalid registrant: %+v", r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[r.EntityName]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, r.EntityName)
	}
	m.entities[r.EntityName] = r.Ref
	m.log.Info("entity registered", slog.String("entity", r.EntityName))
	return nil
}

// Deregister removes an entity dispatcher. Unknown names are ignored.
func (m *Manager) Deregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, name)
}

// Lookup resolves an aggregate type name to its dispatcher.
func (m *Manager) Lookup(name string) (actor.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotRegistered, name)
	}
	return ref, nil
}

// CommandOption attaches attribution to a command.
type CommandOption func(*commandMeta)

type commandMeta struct {
	who string
	why string
}

// AsUser records who issued the command.
func AsUser(who string) CommandOption {
	return func(m *commandMeta) { m.who = who }
}

// Because records why the command was issued.
func Because(why string) CommandOption {
	return func(m *commandMeta) { m.why = why }
}

// SendCommand routes cmd to the named aggregate type and waits until the
// resulting commit is durable.
func SendCommand[M Model[M], C any](ctx context.Context, m *Manager, entity string, cmd C, opts ...CommandOption) (Commit[M], error) {
	ref, err := m.Lookup(entity)
	if err != nil {
		return Commit[M]{}, err
	}

	var meta commandMeta
	for _, opt := range opts {
		opt(&meta)
	}

	res, err := actor.Request[Command[C], Commit[M]](ctx, ref, Command[C]{Cmd: cmd, Who: meta.who, Why: meta.why})
	if err != nil {
		return Commit[M]{}, err
	}
	return *res, nil
}

// FindOne queries the current state of one entity of the named aggregate
// type.
func FindOne[M Model[M]](ctx context.Context, m *Manager, entity string, id EntityID) (M, bool, error) {
	var zero M
	ref, err := m.Lookup(entity)
	if err != nil {
		return zero, false, err
	}

	res, err := actor.Request[QueryOne, SnapshotResult[M]](ctx, ref, QueryOne{ID: id})
	if err != nil {
		return zero, false, err
	}
	return res.Model, res.Found, nil
}

// FindAt queries the state of one entity as it was at the given instant.
func FindAt[M Model[M]](ctx context.Context, m *Manager, entity string, id EntityID, until time.Time) (M, bool, error) {
	var zero M
	ref, err := m.Lookup(entity)
	if err != nil {
		return zero, false, err
	}

	res, err := actor.Request[QueryAt, SnapshotResult[M]](ctx, ref, QueryAt{ID: id, Until: until})
	if err != nil {
		return zero, false, err
	}
	return res.Model, res.Found, nil
}

// FindAll queries the current state of every entity of the named
// aggregate type. Entities whose replay failed are reported per id.
func FindAll[M Model[M]](ctx context.Context, m *Manager, entity string) ([]M, map[EntityID]error, error) {
	ref, err := m.Lookup(entity)
	if err != nil {
		return nil, nil, err
	}

	res, err := actor.Request[QueryAll, SnapshotList[M]](ctx, ref, QueryAll{})
	if err != nil {
		return nil, nil, err
	}
	return res.Models, res.Failed, nil
}
