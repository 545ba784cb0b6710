package perkey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_submit_runs_in_submission_order(t *testing.T) {
	s := New[string]()
	defer s.Close()

	const n = 100
	var (
		mu    sync.Mutex
		order []int
	)

	// submit everything up front, without waiting on any result
	dones := make([]<-chan error, 0, n)
	for i := range n {
		i := i
		done, err := s.Submit("counter", func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		dones = append(dones, done)
	}
	for _, done := range dones {
		require.NoError(t, <-done)
	}

	require.Len(t, order, n)
	for i := range n {
		require.Equal(t, i, order[i])
	}
}

func TestScheduler_keys_run_concurrently(t *testing.T) {
	s := New[string]()
	defer s.Close()

	aStarted := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = s.Do("a", func() error {
			close(aStarted)
			<-release
			return nil
		})
	}()

	<-aStarted

	// key "b" must not wait for key "a"
	done := make(chan error, 1)
	go func() {
		done <- s.Do("b", func() error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("key b blocked behind key a")
	}

	close(release)
}

func TestScheduler_returns_fn_error(t *testing.T) {
	s := New[int]()
	defer s.Close()

	wantErr := &SchedulerError{"boom"}
	err := s.Do(1, func() error { return wantErr })
	require.ErrorIs(t, err, wantErr)

	done, err := s.Submit(1, func() error { return wantErr })
	require.NoError(t, err)
	require.ErrorIs(t, <-done, wantErr)
}

func TestScheduler_context_cancelled(t *testing.T) {
	s := New[string]()
	defer s.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := s.DoContext(ctx, "k", func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_submitted_task_survives_abandoned_wait(t *testing.T) {
	s := New[string]()
	defer s.Close()

	ctx, cancel := context.WithCancel(t.Context())

	started := make(chan struct{})
	release := make(chan struct{})
	ran := make(chan struct{})

	go func() {
		_ = s.DoContext(ctx, "k", func() error {
			close(started)
			<-release
			close(ran)
			return nil
		})
	}()

	<-started
	cancel() // the waiter gives up, the task keeps running
	close(release)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task abandoned after waiter cancelled")
	}
}

func TestScheduler_closed(t *testing.T) {
	s := New[string]()
	s.Close()

	err := s.Do("k", func() error { return nil })
	require.ErrorIs(t, err, ErrSchedulerClosed)

	_, err = s.Submit("k", func() error { return nil })
	require.ErrorIs(t, err, ErrSchedulerClosed)

	// second close is a no-op
	s.Close()
}

func TestScheduler_close_waits_for_queue(t *testing.T) {
	s := New[string]()

	var (
		mu  sync.Mutex
		ran int
	)
	for range 10 {
		_, err := s.Submit("k", func() error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	s.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 10, ran)
}
