package sf

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleflight_dedup(t *testing.T) {
	var calls atomic.Int32
	s := New[int]()

	entered := make(chan struct{})
	gate := make(chan struct{})

	type result struct {
		v      int
		shared bool
	}

	first := make(chan result, 1)
	go func() {
		v, shared, err := s.Do("k", func() (int, error) {
			calls.Add(1)
			close(entered)
			<-gate
			return 42, nil
		})
		require.NoError(t, err)
		first <- result{v: v, shared: shared}
	}()

	<-entered

	// joins the in-flight call instead of running fn again
	second := make(chan result, 1)
	go func() {
		v, shared, err := s.Do("k", func() (int, error) {
			calls.Add(1)
			return -1, nil
		})
		require.NoError(t, err)
		second <- result{v: v, shared: shared}
	}()

	time.Sleep(50 * time.Millisecond)
	close(gate)

	r1, r2 := <-first, <-second
	require.Equal(t, 42, r1.v)
	require.Equal(t, 42, r2.v)
	require.True(t, r1.shared)
	require.True(t, r2.shared)
	require.Equal(t, int32(1), calls.Load())
}

func TestSingleflight_distinct_keys(t *testing.T) {
	s := New[string]()

	a, shared, err := s.Do("a", func() (string, error) { return "a", nil })
	require.NoError(t, err)
	require.False(t, shared)
	b, _, err := s.Do("b", func() (string, error) { return "b", nil })
	require.NoError(t, err)

	require.Equal(t, "a", a)
	require.Equal(t, "b", b)
}
