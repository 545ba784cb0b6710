package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrBusClosed is returned by Publish and Subscribe after Close.
	ErrBusClosed = errors.New("bus: closed")
)

// SubscribeOption configures a subscription.
type SubscribeOption[T any] func(*subConfig[T])

type subConfig[T any] struct {
	bufferSize int
	filter     func(T) bool
}

// WithBufferSize sets the subscription channel buffer (default: 64).
func WithBufferSize[T any](size int) SubscribeOption[T] {
	return func(c *subConfig[T]) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithFilter delivers only messages for which fn returns true.
// The filter runs on the publisher's goroutine and must be fast.
func WithFilter[T any](fn func(T) bool) SubscribeOption[T] {
	return func(c *subConfig[T]) {
		c.filter = fn
	}
}

// Bus is a topic-based publish/subscribe broker for messages of type T.
// All methods are safe for concurrent use.
type Bus[T any] struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription[T]]struct{}
	closed bool
	log    *slog.Logger
}

// Option configures a Bus.
type Option func(*busConfig)

type busConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report dropped messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *busConfig) { c.logger = l }
}

// New creates an empty Bus.
func New[T any](opts ...Option) *Bus[T] {
	cfg := &busConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Bus[T]{
		topics: make(map[string]map[*Subscription[T]]struct{}),
		log:    cfg.logger.With(slog.String("component", "bus")),
	}
}

// Subscription is a live subscription to a single topic.
// Cancel it when done; an abandoned subscription keeps dropping messages
// but never blocks publishers.
type Subscription[T any] struct {
	topic  string
	ch     chan T
	filter func(T) bool

	cancelOnce sync.Once
	cancel     func()
}

// Chan returns the receive channel. It is closed when the subscription is
// cancelled or the bus shuts down.
func (s *Subscription[T]) Chan() <-chan T { return s.ch }

// Topic returns the topic this subscription is attached to.
func (s *Subscription[T]) Topic() string { return s.topic }

// Cancel detaches the subscription and closes its channel.
// Safe to call multiple times.
func (s *Subscription[T]) Cancel() {
	s.cancelOnce.Do(s.cancel)
}

// Subscribe attaches a new subscriber to topic. The subscription is also
// cancelled when ctx is done.
func (b *Bus[T]) Subscribe(ctx context.Context, topic string, opts ...SubscribeOption[T]) (*Subscription[T], error) {
	cfg := &subConfig[T]{bufferSize: 64}
	for _, opt := range opts {
		opt(cfg)
	}

	sub := &Subscription[T]{
		topic:  topic,
		ch:     make(chan T, cfg.bufferSize),
		filter: cfg.filter,
	}
	sub.cancel = func() {
		b.detach(topic, sub)
		close(sub.ch)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription[T]]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		context.AfterFunc(ctx, sub.Cancel)
	}

	return sub, nil
}

// Publish delivers msg to every current subscriber of topic whose filter
// accepts it. Publish never blocks: a subscriber with a full buffer is
// skipped and the drop is logged.
func (b *Bus[T]) Publish(topic string, msg T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for sub := range b.topics[topic] {
		if sub.filter != nil && !sub.filter(msg) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.log.Warn("dropping message for slow subscriber", slog.String("topic", topic))
		}
	}
	return nil
}

// Close cancels all subscriptions and rejects further use.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := make([]*Subscription[T], 0)
	for _, subs := range b.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.topics = make(map[string]map[*Subscription[T]]struct{})
	b.mu.Unlock()

	for _, sub := range all {
		sub.cancelOnce.Do(func() { close(sub.ch) })
	}
}

func (b *Bus[T]) detach(topic string, sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
}
