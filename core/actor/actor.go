package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	// OnPanic is called when a message handler panics. The actor keeps
	// running; the panic never escapes the loop.
	OnPanic func(recovered any, stack []byte, msg any)

	// Actor is the minimal address surface: fire a message at the mailbox,
	// control the loop, wait for shutdown.
	Actor interface {
		Send(ctx context.Context, msg Envelope) error
		Pause() error
		Resume() error
		Step() error
		Done() <-chan struct{}
	}
)

// ---- control messages (internal) ----

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlEnableStep
	ctrlStep
	ctrlStop
)

type ctrlMsg struct {
	kind ctrlKind
}

type Options struct {
	// ID identifies the actor in logs and metrics. Generated when empty.
	ID          string
	MailboxSize int
	ControlSize int
	Context     context.Context
	Logger      *slog.Logger
	OnPanic     OnPanic
	// MaxConcurrentTasks caps the number of tasks run via HandlerCtx.Schedule.
	// If 0 or negative, a default bound is applied.
	MaxConcurrentTasks int
	Metrics            ActorMetrics
}

type BaseActor struct {
	ctx context.Context
	log *slog.Logger
	id  string

	mailbox chan Envelope
	control chan ctrlMsg

	stop chan struct{}
	done chan struct{}

	mu     sync.Mutex
	closed bool

	metrics ActorMetrics
	onPanic OnPanic
}

func New(opt Options, handler RawHandler) *BaseActor {
	if opt.ID == "" {
		opt.ID = gonanoid.Must(8)
	}
	if opt.MailboxSize == 0 {
		opt.MailboxSize = 1024
	}
	if opt.ControlSize == 0 {
		opt.ControlSize = 16
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.MaxConcurrentTasks <= 0 {
		opt.MaxConcurrentTasks = 32
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}

	log := opt.Logger.With(slog.String("actor", opt.ID))

	if opt.OnPanic == nil {
		opt.OnPanic = func(recovered any, stack []byte, msg any) {
			log.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.Any("msg", msg))
		}
	}

	a := &BaseActor{
		ctx:     opt.Context,
		log:     log,
		id:      opt.ID,
		mailbox: make(chan Envelope, opt.MailboxSize),
		control: make(chan ctrlMsg, opt.ControlSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		metrics: opt.Metrics,
		onPanic: opt.OnPanic,
	}

	hc := &handlerCtx{
		Context: opt.Context,
		log:     log,
		sched:   NewSchedulerWithMetrics(opt.MaxConcurrentTasks, opt.Context, opt.ID, opt.Metrics),
		self:    a,
	}

	go a.loop(hc, handler)
	return a
}

// ID returns the actor identity used in logs and metrics.
func (a *BaseActor) ID() string { return a.id }

// Done is closed when the actor stops.
func (a *BaseActor) Done() <-chan struct{} { return a.done }

// Stop requests shutdown and waits for completion, including in-flight
// scheduled tasks.
func (a *BaseActor) Stop() {
	// idempotent
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	a.mu.Unlock()

	// Try to tell the loop to stop; also close stop to unblock all sends/selects.
	select {
	case a.control <- ctrlMsg{kind: ctrlStop}:
	default:
	}
	close(a.stop)
	<-a.done
}

// Send enqueues a message (blocking until enqueued, ctx canceled, or actor stopped).
func (a *BaseActor) Send(ctx context.Context, e Envelope) error {
	if a.isClosed() {
		return errors.New("actor stopped")
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-a.stop:
		return errors.New("actor stopped")
	case a.mailbox <- e:
		a.metrics.MailboxDepth(a.id, len(a.mailbox))
		return nil
	}
}

// TrySend attempts a non-blocking enqueue.
func (a *BaseActor) TrySend(e Envelope) bool {
	if a.isClosed() {
		return false
	}
	select {
	case <-a.stop:
		return false
	case a.mailbox <- e:
		a.metrics.MailboxDepth(a.id, len(a.mailbox))
		return true
	default:
		return false
	}
}

// Pause prevents further processing until Resume or Step.
func (a *BaseActor) Pause() error { return a.sendCtrl(ctrlPause) }

// Resume enables continuous processing (disables step mode).
func (a *BaseActor) Resume() error { return a.sendCtrl(ctrlResume) }

// EnableStepMode makes the actor process only when Step() is called.
func (a *BaseActor) EnableStepMode() error { return a.sendCtrl(ctrlEnableStep) }

// Step permits exactly one message to be processed.
func (a *BaseActor) Step() error { return a.sendCtrl(ctrlStep) }

// ---- internals ----

func (a *BaseActor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *BaseActor) sendCtrl(k ctrlKind) error {
	if a.isClosed() {
		return errors.New("actor stopped")
	}
	select {
	case <-a.stop:
		return errors.New("actor stopped")
	case a.control <- ctrlMsg{kind: k}:
		return nil
	}
}

func (a *BaseActor) loop(hc *handlerCtx, h RawHandler) {
	defer close(a.done)
	defer hc.sched.Wait()

	// execution state lives only in this goroutine
	paused := false
	stepMode := false
	permit := 1 // when >0, actor may process one message; in run mode we auto-renew

	// helper: call handler with crash containment
	safeHandle := func(mc *msgCtx, e Envelope) (res any, err error) {
		defer a.metrics.MessageDuration(e.Type).ObserveDuration()
		defer func() {
			if r := recover(); r != nil {
				a.metrics.MessagePanic(e.Type)
				if a.onPanic != nil {
					a.onPanic(r, debug.Stack(), e.Msg)
				}
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return h.HandleMessage(mc, e.Type, e.Msg)
	}

	applyCtrl := func(k ctrlKind) (cont bool) {
		switch k {
		case ctrlStop:
			return false
		case ctrlPause:
			paused = true
			permit = 0
		case ctrlResume:
			paused = false
			stepMode = false
			if permit == 0 {
				permit = 1
			}
		case ctrlEnableStep:
			stepMode = true
			paused = true
			permit = 0
		case ctrlStep:
			// allow exactly one processing opportunity
			permit++
		}
		return true
	}

	// helper: drain all pending control msgs (priority)
	drainControl := func() bool {
		for {
			select {
			case <-a.stop:
				return false
			case c := <-a.control:
				if !applyCtrl(c.kind) {
					return false
				}
			default:
				return true
			}
		}
	}

	if err := h.InitHandler(hc); err != nil {
		a.log.Error("actor init failed", slog.Any("error", err))
		return
	}

	for {
		// Always prioritize control.
		if ok := drainControl(); !ok {
			return
		}

		select {
		case <-hc.Done():
			return
		default:
		}

		// If no permit, block until a control message (or stop).
		if permit <= 0 {
			select {
			case <-a.stop:
				return
			case <-hc.Done():
				return
			case c := <-a.control:
				if !applyCtrl(c.kind) {
					return
				}
			}
			continue
		}

		// With a permit, process exactly one message, but control can
		// still preempt.
		var handled bool
		select {
		case <-a.stop:
			return
		case <-hc.Done():
			return
		case c := <-a.control:
			// preempt: apply control, do not consume permit yet
			if !applyCtrl(c.kind) {
				return
			}
		case msg := <-a.mailbox:
			permit--
			a.metrics.MailboxDepth(a.id, len(a.mailbox))
			mc := &msgCtx{handlerCtx: hc, reply: msg.Reply}
			res, err := safeHandle(mc, msg)
			a.metrics.MessageProcessed(msg.Type, err == nil)
			if !mc.detached {
				mc.deliver(res, err)
			}
			handled = true
		}

		// Auto-renew permit in continuous mode after handling one message.
		if handled && !paused && !stepMode {
			permit++
		}
	}
}

var _ Actor = (*BaseActor)(nil)
