// Package actor provides a minimal mailbox-based actor runtime: an address
// you can send messages to, a strictly sequential message loop, and a
// bounded scheduler for background tasks spawned from handlers.
//
// Messages to one actor are processed one at a time, in arrival order. The
// loop itself never blocks on I/O: handlers that need to wait (backend
// calls, locks) detach their reply and finish from a scheduled task, so the
// mailbox keeps draining.
//
// # Creating Actors
//
// Define handlers with typed registrations and start the actor:
//
//	a := actor.TypedHandlers(
//	    actor.HandleMsg[Deposit](func(hc actor.HandlerCtx, cmd Deposit) error {
//	        // fire-and-forget
//	        return nil
//	    }),
//	    actor.HandleRequest[GetBalance, Balance](func(hc actor.HandlerCtx, q GetBalance) (*Balance, error) {
//	        return &Balance{Amount: 42}, nil
//	    }),
//	).ToActor(actor.Options{})
//
// # Sending Messages
//
// [Request] performs a request/reply round trip over a disposable one-shot
// reply channel; [Publish] waits only for the handler to run:
//
//	b, err := actor.Request[GetBalance, Balance](ctx, a, GetBalance{ID: "123"})
//	err := actor.Publish(ctx, a, Deposit{Amount: 10})
//
// # Asynchronous Replies
//
// A handler that must not hold up the mailbox claims the reply and answers
// later from a scheduled task:
//
//	actor.HandleRequest[Snapshot, Model](func(hc actor.HandlerCtx, q Snapshot) (*Model, error) {
//	    reply := hc.Detach()
//	    hc.Schedule(func() {
//	        m, err := load(hc, q.ID)
//	        reply(m, err)
//	    })
//	    return nil, nil
//	})
//
// Replies delivered this way are unordered relative to each other; only
// mailbox intake is sequential.
//
// # Lifecycle Control
//
// Actors support pause/resume/step for tests and debugging:
//
//	a.Pause()      // stop processing messages
//	a.Step()       // process exactly one message
//	a.Resume()     // continue normal processing
//	<-a.Done()     // wait for shutdown
package actor
