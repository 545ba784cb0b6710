package es

import (
	"testing"
	"time"

	"github.com/Valiuapp/actor-es/core/actor"
	"github.com/Valiuapp/actor-es/core/reflector"
	"github.com/stretchr/testify/require"
)

func newCounterEntity(t *testing.T) *Entity[*Counter, CounterCommand] {
	store := NewStore[*Counter](t.Context(), "counter", NewMemStore[*Counter]())
	t.Cleanup(store.Stop)

	e := NewEntity(t.Context(), "counter", store, CounterCommandHandler())
	t.Cleanup(e.Stop)
	return e
}

func sendCounterCmd(t *testing.T, e *Entity[*Counter, CounterCommand], cmd CounterCommand) (*Commit[*Counter], error) {
	t.Helper()
	return actor.Request[Command[CounterCommand], Commit[*Counter]](t.Context(), e.Ref(), Command[CounterCommand]{Cmd: cmd})
}

func TestEntity_command_n_query(t *testing.T) {
	e := newCounterEntity(t)
	id := NewEntityID()

	_, err := sendCounterCmd(t, e, CreateCounter{ID: id, Init: 42})
	require.NoError(t, err)
	_, err = sendCounterCmd(t, e, DoubleCounter{ID: id})
	require.NoError(t, err)

	res, err := actor.Request[QueryOne, SnapshotResult[*Counter]](t.Context(), e.Ref(), QueryOne{ID: id})
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, 84, res.Model.Value)
}

func TestEntity_command_on_missing_entity(t *testing.T) {
	e := newCounterEntity(t)

	_, err := sendCounterCmd(t, e, DoubleCounter{ID: "ghost"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEntity_create_twice(t *testing.T) {
	e := newCounterEntity(t)
	id := NewEntityID()

	_, err := sendCounterCmd(t, e, CreateCounter{ID: id, Init: 1})
	require.NoError(t, err)
	_, err = sendCounterCmd(t, e, CreateCounter{ID: id, Init: 2})
	require.ErrorIs(t, err, ErrCantChange)
}

func TestEntity_commit_carries_attribution(t *testing.T) {
	e := newCounterEntity(t)
	id := NewEntityID()

	c, err := actor.Request[Command[CounterCommand], Commit[*Counter]](t.Context(), e.Ref(), Command[CounterCommand]{
		Cmd: CreateCounter{ID: id, Init: 1},
		Who: "alice",
		Why: "initial import",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", c.Who)
	require.Equal(t, "initial import", c.Why)
	require.False(t, c.When.IsZero())
}

func TestEntity_reads_own_write(t *testing.T) {
	e := newCounterEntity(t)
	id := NewEntityID()

	// once the create is acknowledged, the next command must see it,
	// even back to back
	_, err := sendCounterCmd(t, e, CreateCounter{ID: id, Init: 10})
	require.NoError(t, err)

	for range 5 {
		_, err := sendCounterCmd(t, e, AddToCounter{ID: id, N: 1})
		require.NoError(t, err)
	}

	res, err := actor.Request[QueryOne, SnapshotResult[*Counter]](t.Context(), e.Ref(), QueryOne{ID: id})
	require.NoError(t, err)
	require.Equal(t, 15, res.Model.Value)
}

func TestEntity_commands_enter_lock_in_mailbox_order(t *testing.T) {
	e := newCounterEntity(t)

	// stall the mailbox, enqueue a create/change pair back to back, then
	// let the actor drain; the change must never overtake the create
	for range 10 {
		id := NewEntityID()
		require.NoError(t, e.Ref().Pause())

		sendAsync := func(cmd CounterCommand) chan actor.Reply {
			msg := Command[CounterCommand]{Cmd: cmd}
			ch := make(chan actor.Reply, 1)
			require.NoError(t, e.Ref().Send(t.Context(), actor.Envelope{
				Type:  reflector.TypeInfoOf(msg).Name,
				Msg:   msg,
				Reply: ch,
			}))
			return ch
		}

		createReply := sendAsync(CreateCounter{ID: id, Init: 1})
		addReply := sendAsync(AddToCounter{ID: id, N: 1})

		require.NoError(t, e.Ref().Resume())

		for _, ch := range []chan actor.Reply{createReply, addReply} {
			select {
			case r := <-ch:
				require.NoError(t, r.Error)
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for command reply")
			}
		}

		res, err := actor.Request[QueryOne, SnapshotResult[*Counter]](t.Context(), e.Ref(), QueryOne{ID: id})
		require.NoError(t, err)
		require.True(t, res.Found)
		require.Equal(t, 2, res.Model.Value)
	}
}

func TestEntity_query_all(t *testing.T) {
	e := newCounterEntity(t)

	for _, id := range []EntityID{"a", "b", "c"} {
		_, err := sendCounterCmd(t, e, CreateCounter{ID: id, Init: 10})
		require.NoError(t, err)
	}
	_, err := sendCounterCmd(t, e, AddToCounter{ID: "b", N: 40})
	require.NoError(t, err)

	res, err := actor.Request[QueryAll, SnapshotList[*Counter]](t.Context(), e.Ref(), QueryAll{})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	require.Len(t, res.Models, 3)
}

func TestEntity_query_at(t *testing.T) {
	e := newCounterEntity(t)
	id := NewEntityID()

	before := time.Now().UTC()
	_, err := sendCounterCmd(t, e, CreateCounter{ID: id, Init: 1})
	require.NoError(t, err)
	created := time.Now().UTC()
	_, err = sendCounterCmd(t, e, AddToCounter{ID: id, N: 9})
	require.NoError(t, err)

	res, err := actor.Request[QueryAt, SnapshotResult[*Counter]](t.Context(), e.Ref(), QueryAt{ID: id, Until: created})
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, 1, res.Model.Value)

	res, err = actor.Request[QueryAt, SnapshotResult[*Counter]](t.Context(), e.Ref(), QueryAt{ID: id, Until: before})
	require.NoError(t, err)
	require.False(t, res.Found)
}
