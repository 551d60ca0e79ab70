package bus

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type key interface {
	comparable
}

type message interface {
	any
}

type Message[K key, M message] struct {
	Key     K
	Message M
}

type Publisher[M message] func(ctx context.Context, msg M)
type Subscriber[K key, M message] func(ctx context.Context) <-chan Message[K, M]

// Bus delivers messages to global subscribers and to subscribers of the message key.
// Delivery is sequential: a slow subscriber holds back the ones after it.
type Bus[K key, M message] struct {
	log   *zap.Logger
	ready chan struct{}

	ch         chan Message[K, M]
	keySubs    *xsync.MapOf[K, map[*subscription[K, M]]struct{}]
	globalSubs *xsync.MapOf[*subscription[K, M], struct{}]
}

type subscription[K key, M message] struct {
	ch   chan Message[K, M]
	done <-chan struct{}
}

type Option func(*busOptions)

type busOptions struct {
	buffer int
}

// WithBuffer sets how many published messages may wait for a worker.
func WithBuffer(n int) Option {
	return func(o *busOptions) {
		o.buffer = n
	}
}

func NewBus[K key, M message](logger *zap.Logger, opts ...Option) *Bus[K, M] {
	var options busOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Bus[K, M]{
		log:   logger,
		ready: make(chan struct{}),

		ch:         make(chan Message[K, M], options.buffer),
		keySubs:    xsync.NewMapOf[K, map[*subscription[K, M]]struct{}](),
		globalSubs: xsync.NewMapOf[*subscription[K, M], struct{}](),
	}
}

// Start runs the delivery worker until ctx is done. Messages are delivered in publish order.
func (b *Bus[K, M]) Start(ctx context.Context) error {
	go b.worker(ctx)
	close(b.ready)
	return nil
}

func (b *Bus[K, M]) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.ch:
			b.process(ctx, msg)
		}
	}
}

func (b *Bus[K, M]) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bus[K, M]) Publish(ctx context.Context, key K, msg M) {
	select {
	case <-ctx.Done():
		b.log.Debug("message dropped, context done")
	case b.ch <- Message[K, M]{key, msg}:
	}
}

func (b *Bus[K, M]) CreatePublisher(key K) Publisher[M] {
	return func(ctx context.Context, msg M) {
		b.Publish(ctx, key, msg)
	}
}

func (b *Bus[K, M]) CreateSubscriber(key ...K) Subscriber[K, M] {
	return func(ctx context.Context) <-chan Message[K, M] {
		return b.Subscribe(ctx, key...)
	}
}

func (b *Bus[K, M]) process(ctx context.Context, msg Message[K, M]) {
	b.globalSubs.Range(func(sub *subscription[K, M], _ struct{}) bool {
		return b.deliver(ctx, sub, msg)
	})
	subs, ok := b.keySubs.Load(msg.Key)
	if !ok {
		return
	}
	for sub := range subs {
		if !b.deliver(ctx, sub, msg) {
			return
		}
	}
}

func (b *Bus[K, M]) deliver(ctx context.Context, sub *subscription[K, M], msg Message[K, M]) bool {
	select {
	case <-ctx.Done():
		return false
	case <-sub.done:
	case sub.ch <- msg:
	}
	return true
}

// Subscribe returns a channel receiving messages for the given keys, or all messages
// when no key is given. Delivery stops once ctx is done; the channel is not closed,
// so receivers should select on ctx as well.
func (b *Bus[K, M]) Subscribe(ctx context.Context, key ...K) <-chan Message[K, M] {
	sub := &subscription[K, M]{
		ch:   make(chan Message[K, M]),
		done: ctx.Done(),
	}
	if len(key) == 0 {
		b.globalSubs.Store(sub, struct{}{})
		go func() {
			<-ctx.Done()
			b.globalSubs.Delete(sub)
		}()
		return sub.ch
	}
	for _, k := range key {
		b.keySubs.Compute(k, func(val map[*subscription[K, M]]struct{}, ok bool) (map[*subscription[K, M]]struct{}, bool) {
			next := make(map[*subscription[K, M]]struct{}, len(val)+1)
			for s := range val {
				next[s] = struct{}{}
			}
			next[sub] = struct{}{}
			return next, false
		})
	}
	go func() {
		<-ctx.Done()
		for _, k := range key {
			b.keySubs.Compute(k, func(val map[*subscription[K, M]]struct{}, ok bool) (map[*subscription[K, M]]struct{}, bool) {
				next := make(map[*subscription[K, M]]struct{}, len(val))
				for s := range val {
					if s != sub {
						next[s] = struct{}{}
					}
				}
				return next, len(next) == 0
			})
		}
	}()
	return sub.ch
}
