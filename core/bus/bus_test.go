package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvOne[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.Chan():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		panic("unreachable")
	}
}

func TestBus_publish_subscribe(t *testing.T) {
	b := New[string]()
	defer b.Close()

	sub, err := b.Subscribe(t.Context(), "counter-events")
	require.NoError(t, err)

	require.NoError(t, b.Publish("counter-events", "hello"))
	require.Equal(t, "hello", recvOne(t, sub))
}

func TestBus_topics_are_isolated(t *testing.T) {
	b := New[int]()
	defer b.Close()

	a, err := b.Subscribe(t.Context(), "a-events")
	require.NoError(t, err)
	c, err := b.Subscribe(t.Context(), "c-events")
	require.NoError(t, err)

	require.NoError(t, b.Publish("a-events", 1))

	require.Equal(t, 1, recvOne(t, a))
	select {
	case v := <-c.Chan():
		t.Fatalf("unexpected message on other topic: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_filter(t *testing.T) {
	b := New[int]()
	defer b.Close()

	even, err := b.Subscribe(t.Context(), "nums",
		WithFilter(func(v int) bool { return v%2 == 0 }))
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		require.NoError(t, b.Publish("nums", i))
	}

	require.Equal(t, 2, recvOne(t, even))
	require.Equal(t, 4, recvOne(t, even))
}

func TestBus_slow_subscriber_dropped(t *testing.T) {
	b := New[int]()
	defer b.Close()

	sub, err := b.Subscribe(t.Context(), "t", WithBufferSize[int](1))
	require.NoError(t, err)

	// second publish overflows the buffer and must not block
	require.NoError(t, b.Publish("t", 1))
	require.NoError(t, b.Publish("t", 2))

	require.Equal(t, 1, recvOne(t, sub))
	select {
	case v := <-sub.Chan():
		t.Fatalf("dropped message delivered: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_cancel(t *testing.T) {
	b := New[int]()
	defer b.Close()

	sub, err := b.Subscribe(t.Context(), "t")
	require.NoError(t, err)
	sub.Cancel()
	sub.Cancel() // idempotent

	_, ok := <-sub.Chan()
	require.False(t, ok)

	require.NoError(t, b.Publish("t", 1))
}

func TestBus_context_cancel_detaches(t *testing.T) {
	b := New[int]()
	defer b.Close()

	ctx, cancel := context.WithCancel(t.Context())
	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-sub.Chan():
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestBus_closed(t *testing.T) {
	b := New[int]()

	sub, err := b.Subscribe(t.Context(), "t")
	require.NoError(t, err)

	b.Close()

	_, ok := <-sub.Chan()
	require.False(t, ok)

	require.ErrorIs(t, b.Publish("t", 1), ErrBusClosed)
	_, err = b.Subscribe(t.Context(), "t")
	require.ErrorIs(t, err, ErrBusClosed)
}
