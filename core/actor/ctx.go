package actor

import (
	"context"
	"log/slog"
	"sync"
)

type (
	// ReplyFunc delivers the reply for a detached message exactly once.
	// Calls after the first are ignored.
	ReplyFunc func(result any, err error)

	// HandlerCtx is the context handlers run in. It carries the actor's
	// base context, its logger, the background scheduler, and the ability
	// to detach the current message's reply.
	HandlerCtx interface {
		context.Context
		Log() *slog.Logger
		// Schedule runs f asynchronously on the actor's bounded scheduler.
		Schedule(f scheduleFunc)
		// Send enqueues a message into the owning actor's own mailbox.
		// Never call this from inside a message handler while waiting for
		// the reply; that would deadlock the loop. It exists for init
		// functions and background goroutines (tickers).
		Send(ctx context.Context, e Envelope) error
		// Detach takes over the current message's reply. The loop will not
		// answer the caller; the returned ReplyFunc must be called instead,
		// typically from a scheduled task.
		Detach() ReplyFunc
	}
)

// handlerCtx is shared by all messages of one actor.
type handlerCtx struct {
	context.Context
	log   *slog.Logger
	sched Scheduler
	self  requester
}

func (hc *handlerCtx) Log() *slog.Logger       { return hc.log }
func (hc *handlerCtx) Schedule(f scheduleFunc) { hc.sched.Schedule(f) }

func (hc *handlerCtx) Send(ctx context.Context, e Envelope) error {
	return hc.self.Send(ctx, e)
}

// Detach on the shared context is only reachable from init functions and
// ticker callbacks, which have no caller waiting; it returns a no-op.
func (hc *handlerCtx) Detach() ReplyFunc { return func(any, error) {} }

// msgCtx wraps the shared context with the in-flight message's reply channel.
type msgCtx struct {
	*handlerCtx
	reply    chan Reply
	detached bool
	once     sync.Once
}

func (mc *msgCtx) Detach() ReplyFunc {
	mc.detached = true
	return mc.deliver
}

func (mc *msgCtx) deliver(result any, err error) {
	mc.once.Do(func() {
		if mc.reply == nil {
			return
		}
		mc.reply <- Reply{Result: result, Error: err}
	})
}

var (
	_ HandlerCtx = (*handlerCtx)(nil)
	_ HandlerCtx = (*msgCtx)(nil)
)
