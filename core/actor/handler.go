package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	emptyOut struct{}

	// Reply carries the result of a message handler execution.
	Reply struct {
		Result any   // Handler return value (nil for fire-and-forget)
		Error  error // Handler error, if any
	}

	// Envelope wraps a message for delivery to an actor's mailbox. Messages
	// stay in-process; payloads are passed by value, never serialized.
	Envelope struct {
		Type  string     // Message type name for handler dispatch
		Msg   any        // Message payload
		Reply chan Reply // One-shot channel for the response (may be nil)
	}

	// RawHandler is the low-level interface for handling actor messages.
	// Most users should use [TypedHandlers] instead of implementing this directly.
	RawHandler interface {
		// InitHandler is called once when the actor starts, before processing messages.
		InitHandler(hc HandlerCtx) error
		// HandleMessage processes a message and returns a response.
		HandleMessage(hc HandlerCtx, mt string, msg any) (any, error)
	}

	// MsgHandlerFunc is the signature for message handler functions.
	MsgHandlerFunc func(hc HandlerCtx, msg any) (any, error)

	// HandlerInitFunc is called during actor initialization.
	HandlerInitFunc func(hc HandlerCtx) error

	// HandlerRegistrar allows registering message handlers with the actor.
	HandlerRegistrar interface {
		// Register adds a handler for a message type.
		Register(msgType string, handle MsgHandlerFunc, init HandlerInitFunc)
	}

	// HandlerRegistration is a function that registers handlers with a registrar.
	// Create these using [HandleMsg], [HandleRequest], [HandleEvery], etc.
	HandlerRegistration func(registrar HandlerRegistrar)
)

// TypedHandlerRegistry manages message handlers for an actor, dispatching
// incoming messages to the appropriate typed handler based on message type.
type TypedHandlerRegistry struct {
	mu             sync.RWMutex
	inits          []HandlerInitFunc
	handlers       map[string]MsgHandlerFunc
	defaultHandler MsgHandlerFunc
}

// ToActor creates and starts an actor using this handler registry.
func (t *TypedHandlerRegistry) ToActor(opts Options) *BaseActor {
	return New(opts, t)
}

// Register adds a handler for a message type. This is typically called
// indirectly via [HandleMsg], [HandleRequest], etc.
func (t *TypedHandlerRegistry) Register(msgType string, msgHandler MsgHandlerFunc, init HandlerInitFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msgType != "" && msgHandler != nil {
		t.handlers[msgType] = msgHandler
	}

	if init != nil {
		t.inits = append(t.inits, init)
	}
}

// InitHandler initializes all registered handlers. Called by the actor on startup.
func (t *TypedHandlerRegistry) InitHandler(hc HandlerCtx) error {
	// store default handler
	dh, ok := t.handlers["*"]
	if ok {
		t.defaultHandler = dh
	} else {
		t.defaultHandler = func(hc HandlerCtx, msg any) (any, error) {
			return nil, fmt.Errorf("no handler for msg: msg_type=%s go_type=%T msg=%+v", msgTypeOf(msg), msg, msg)
		}
	}

	// call all init funcs
	for _, i := range t.inits {
		if err := i(hc); err != nil {
			return fmt.Errorf("failed to init handler: %w", err)
		}
	}

	return nil
}

// HandleMessage dispatches a message to the registered handler for its type.
func (t *TypedHandlerRegistry) HandleMessage(hc HandlerCtx, mt string, msg any) (any, error) {
	t.mu.RLock()
	h, ok := t.handlers[mt]
	t.mu.RUnlock()

	if !ok {
		return t.defaultHandler(hc, msg)
	}
	return h(hc, msg)
}

// TypedHandlers creates a new handler registry with the given handlers.
// This is the primary way to define actor message handlers.
//
// Example:
//
//	registry := actor.TypedHandlers(
//	    actor.HandleMsg[MyCommand](handleMyCommand),
//	    actor.HandleRequest[MyQuery, MyResponse](handleMyQuery),
//	)
//	myActor := registry.ToActor(actor.Options{})
func TypedHandlers(handlers ...HandlerRegistration) *TypedHandlerRegistry {
	th := &TypedHandlerRegistry{
		handlers: make(map[string]MsgHandlerFunc),
		inits:    make([]HandlerInitFunc, 0),
	}

	for _, h := range handlers {
		h(th)
	}

	return th
}

// DefaultHandler registers a fallback handler for messages without a specific handler.
func DefaultHandler(h func(HandlerCtx, any) (any, error)) HandlerRegistration {
	return func(registrar HandlerRegistrar) {
		registrar.Register("*", h, nil)
	}
}

// Init registers an initialization function called when the actor starts.
// Use this to set up state, start background goroutines, or perform other setup.
func Init(initFunc HandlerInitFunc) HandlerRegistration {
	return func(registrar HandlerRegistrar) {
		registrar.Register("", nil, initFunc)
	}
}

// HandleMsg registers a fire-and-forget message handler for type IN.
// Use this for commands that don't return a value.
func HandleMsg[IN any](msgHandler func(h HandlerCtx, i IN) error) HandlerRegistration {
	return HandleRequest[IN, emptyOut](func(h HandlerCtx, i IN) (*emptyOut, error) {
		return nil, msgHandler(h, i)
	})
}

// HandleMsgWithOpts registers a message handler with additional options.
func HandleMsgWithOpts[IN any](
	msgHandler func(h HandlerCtx, i IN) error,
	opts ...HandleOption,
) HandlerRegistration {
	return HandleRequestWithOpts[IN, emptyOut](
		func(h HandlerCtx, i IN) (*emptyOut, error) {
			return nil, msgHandler(h, i)
		},
		opts...,
	)
}

type tickMsg struct{ mt string }

func (m tickMsg) MsgType() string { return m.mt }

// HandleEvery registers a periodic task that runs at the given interval.
// The handler is called via the actor's mailbox, ensuring sequential execution
// with other handlers.
func HandleEvery(interval time.Duration, msgHandler func(h HandlerCtx) error) HandlerRegistration {
	msg := tickMsg{mt: "tick/" + gonanoid.Must()}

	return HandleMsgWithOpts[tickMsg](
		func(h HandlerCtx, tick tickMsg) error {
			return msgHandler(h)
		},
		WithMessageType(msg.MsgType()),
		WithInitFunc(func(hc HandlerCtx) error {
			tmr := time.NewTicker(interval)
			go func() {
				defer tmr.Stop()
				for {
					select {
					case <-hc.Done():
						return
					case <-tmr.C:
						if _, err := RawRequest(hc, hc, msg.MsgType(), msg); err != nil {
							hc.Log().Warn("failed to send tick message", slog.Any("error", err))
						}
					}
				}
			}()
			return nil
		}),
	)
}

// HandleRequest registers a request-response handler. The handler receives
// a message of type IN and returns a response of type *OUT.
func HandleRequest[IN any, OUT any](h func(h HandlerCtx, i IN) (*OUT, error)) HandlerRegistration {
	return HandleRequestWithOpts(h)
}

// HandleOpts configures handler registration.
type HandleOpts struct {
	// MessageType overrides the default type name derived from the Go type.
	MessageType string
	// InitFunc is called during actor initialization.
	InitFunc HandlerInitFunc
}

// HandleOption configures handler registration behavior.
type HandleOption func(*HandleOpts)

// WithMessageType overrides the message type name used for routing.
// By default, the type name is derived from the Go type using reflection.
func WithMessageType(msgType string) HandleOption {
	return func(o *HandleOpts) {
		o.MessageType = msgType
	}
}

// WithInitFunc adds an initialization function to be called on actor startup.
func WithInitFunc(init HandlerInitFunc) HandleOption {
	return func(o *HandleOpts) {
		o.InitFunc = init
	}
}

// HandleRequestWithOpts registers a request-response handler with additional options.
func HandleRequestWithOpts[IN any, OUT any](
	h func(h HandlerCtx, i IN) (*OUT, error),
	opts ...HandleOption,
) HandlerRegistration {
	handleOpts := HandleOpts{
		MessageType: msgTypeFor[IN](),
	}
	for _, opt := range opts {
		opt(&handleOpts)
	}
	return func(registrar HandlerRegistrar) {
		registrar.Register(
			handleOpts.MessageType,
			func(hc HandlerCtx, msg any) (any, error) {
				i, ok := msg.(IN)
				if !ok {
					return nil, fmt.Errorf("invalid request message type: %T", msg)
				}
				out, err := h(hc, i)
				if err != nil {
					return nil, err
				}
				if out == nil {
					return nil, nil
				}
				return out, nil
			},
			handleOpts.InitFunc,
		)
	}
}

type requester interface {
	Send(ctx context.Context, msg Envelope) error
}

// Request sends a request to an actor and waits for the response.
// Dispatch is based on the type name of IN.
func Request[IN any, OUT any](ctx context.Context, r requester, i IN) (*OUT, error) {
	res, err := RawRequest(ctx, r, msgTypeOf(i), i)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	out, ok := res.(*OUT)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type: %T", res)
	}
	return out, nil
}

// Publish sends a message to an actor and waits for the handler to run.
// Unlike [Request], Publish does not expect a return value from the handler;
// the handler's error, if any, is returned.
func Publish[IN any](ctx context.Context, r requester, i IN) error {
	_, err := Request[IN, emptyOut](ctx, r, i)
	return err
}

// RawRequest sends a message to an actor under an explicit type name and
// waits for the response. Use [Request] for type-safe messaging.
func RawRequest(ctx context.Context, r requester, msgType string, msg any) (any, error) {
	// Disposable one-shot responder: buffered so the reply never blocks the
	// actor, abandoned wholesale if the caller gives up.
	replyChan := make(chan Reply, 1)

	err := r.Send(ctx, Envelope{Type: msgType, Msg: msg, Reply: replyChan})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-replyChan:
		return reply.Result, reply.Error
	}
}
