package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type scheduleFunc func()

// Scheduler runs the background tasks handlers spawn via
// HandlerCtx.Schedule: backend I/O, lock waits, detached replies.
type Scheduler interface {
	Schedule(f scheduleFunc)
	// Wait blocks until all in-flight tasks complete.
	Wait()
}

type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	inflight atomic.Int32
	sem      chan struct{}
	max      int

	wg sync.WaitGroup

	actorID string
	metrics ActorMetrics
}

func (s *scheduler) Schedule(f scheduleFunc) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	s.wg.Add(1)

	// unbounded when max <= 0
	if s.max <= 0 {
		go func() {
			defer s.wg.Done()
			count := s.inflight.Add(1)
			s.metrics.SchedulerInflight(s.actorID, int(count))
			defer func() {
				count := s.inflight.Add(-1)
				s.metrics.SchedulerInflight(s.actorID, int(count))
			}()
			s.runTask(f)
		}()
		return
	}

	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			return
		case s.sem <- struct{}{}:
		}

		count := s.inflight.Add(1)
		s.metrics.SchedulerInflight(s.actorID, int(count))
		defer func() {
			<-s.sem
			count := s.inflight.Add(-1)
			s.metrics.SchedulerInflight(s.actorID, int(count))
		}()

		s.runTask(f)
	}()
}

// runTask executes one task with crash containment. A panicking task is
// logged and counted; it never takes the actor down.
func (s *scheduler) runTask(f scheduleFunc) {
	defer s.metrics.SchedulerTaskDuration().ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerTaskCompleted(false)
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
			return
		}
	}()

	f()
	s.metrics.SchedulerTaskCompleted(true)
}

// Wait blocks until all in-flight tasks complete.
func (s *scheduler) Wait() {
	s.wg.Wait()
}

// NewScheduler creates a scheduler running at most max tasks at once
// (unbounded when max <= 0). Tasks are not started once ctx is cancelled.
func NewScheduler(max int, ctx context.Context) Scheduler {
	return NewSchedulerWithMetrics(max, ctx, "", NopActorMetrics())
}

// NewSchedulerWithMetrics is NewScheduler with instrumentation attributed
// to the owning actor.
func NewSchedulerWithMetrics(max int, ctx context.Context, actorID string, metrics ActorMetrics) Scheduler {
	var sem chan struct{}
	if max > 0 {
		sem = make(chan struct{}, max)
	}
	if metrics == nil {
		metrics = NopActorMetrics()
	}
	return &scheduler{
		ctx:     ctx,
		sem:     sem,
		max:     max,
		log:     slog.Default(),
		actorID: actorID,
		metrics: metrics,
	}
}
