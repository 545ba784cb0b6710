package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Valiuapp/actor-es/adapters/nats"
	"github.com/Valiuapp/actor-es/core/es"
)

// TestCounter_end_to_end runs the whole stack against a real JetStream
// server: commands through the manager, durable commits in NATS, events on
// the bus, and replays through the store dispatcher.
func TestCounter_end_to_end(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	connect := nats.ReuseConnection(nats.NewTestContainer(t))

	backend, err := nats.NewCommitStore(t.Context(), nats.CommitStoreConfig[*es.Counter]{
		Connect: connect,
		Name:    "counter",
		Codec:   es.NewCounterCodec(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store := es.NewStore[*es.Counter](t.Context(), "counter", backend)
	t.Cleanup(store.Stop)

	entity := es.NewEntity(t.Context(), "counter", store, es.CounterCommandHandler())
	t.Cleanup(entity.Stop)

	m := es.NewManager()
	require.NoError(t, m.Register(entity.Registrant()))

	sub, err := store.Subscribe(t.Context())
	require.NoError(t, err)

	id := es.NewEntityID()
	_, err = es.SendCommand[*es.Counter](t.Context(), m, "counter",
		es.CounterCommand(es.CreateCounter{ID: id, Init: 42}), es.AsUser("it"))
	require.NoError(t, err)
	_, err = es.SendCommand[*es.Counter](t.Context(), m, "counter",
		es.CounterCommand(es.DoubleCounter{ID: id}))
	require.NoError(t, err)

	c, found, err := es.FindOne[*es.Counter](t.Context(), m, "counter", id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 84, c.Value)

	// both commits were published, in order
	for i, wantCreate := range []bool{true, false} {
		select {
		case commit := <-sub.Chan():
			require.Equal(t, wantCreate, commit.Event.IsCreate(), "event %d", i)
			require.Equal(t, id, commit.Event.EntityID())
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for published event %d", i)
		}
	}

	// a fresh backend over the same server sees the durable stream
	backend2, err := nats.NewCommitStore(t.Context(), nats.CommitStoreConfig[*es.Counter]{
		Connect: connect,
		Name:    "counter",
		Codec:   es.NewCounterCodec(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend2.Close() })

	c2, err := es.Snapshot[*es.Counter](t.Context(), backend2, id)
	require.NoError(t, err)
	require.Equal(t, 84, c2.Value)
}

func TestCounter_many_entities(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	backend, err := nats.NewCommitStore(t.Context(), nats.CommitStoreConfig[*es.Counter]{
		Connect: nats.NewTestContainer(t),
		Name:    "counter",
		Codec:   es.NewCounterCodec(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store := es.NewStore[*es.Counter](t.Context(), "counter", backend)
	t.Cleanup(store.Stop)

	entity := es.NewEntity(t.Context(), "counter", store, es.CounterCommandHandler())
	t.Cleanup(entity.Stop)

	m := es.NewManager()
	require.NoError(t, m.Register(entity.Registrant()))

	for _, id := range []es.EntityID{"a", "b", "c"} {
		_, err := es.SendCommand[*es.Counter](t.Context(), m, "counter",
			es.CounterCommand(es.CreateCounter{ID: id, Init: 10}))
		require.NoError(t, err)
	}
	_, err = es.SendCommand[*es.Counter](t.Context(), m, "counter",
		es.CounterCommand(es.AddToCounter{ID: "b", N: 40}))
	require.NoError(t, err)

	models, failed, err := es.FindAll[*es.Counter](t.Context(), m, "counter")
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Len(t, models, 3)

	byID := make(map[es.EntityID]int, len(models))
	for _, c := range models {
		byID[c.ID] = c.Value
	}
	require.Equal(t, map[es.EntityID]int{"a": 10, "b": 50, "c": 10}, byID)
}
