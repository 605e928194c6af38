package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Errors returned by the bus.
var (
	ErrInvalidTopic = errors.New("invalid topic")
	ErrNilHandler   = errors.New("nil handler")
)

// HandlerFunc handles a delivered event.
type HandlerFunc func(ctx context.Context, ev Event)

// PanicHandler is called with the recovered value when a handler panics.
type PanicHandler func(ev Event, recovered any)

// Stats are cumulative bus counters.
type Stats struct {
	Published     uint64
	Delivered     uint64
	HandlerPanics uint64
	Subscriptions int
}

type subscription struct {
	id      uint64
	pattern Topic
	handler HandlerFunc
}

// Bus delivers events to subscribers whose pattern matches the topic.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  uint64
	onPanic PanicHandler

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler sets the handler invoked when a subscriber panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) {
		b.onPanic = h
	}
}

// NewBus creates a bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn for topics matching pattern. The returned function
// removes the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(pattern Topic, fn HandlerFunc) (func(), error) {
	if !pattern.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, pattern)
	}
	if fn == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, pattern: pattern, handler: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}, nil
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every matching subscriber and returns the number
// of handlers invoked. Handlers may publish or subscribe themselves.
func (b *Bus) Publish(ctx context.Context, ev Event) (int, error) {
	if !ev.Topic.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, ev.Topic)
	}
	b.published.Add(1)

	b.mu.RLock()
	var targets []HandlerFunc
	for _, s := range b.subs {
		if ev.Topic.Matches(s.pattern) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b.deliver(ctx, ev, h)
	}
	return len(targets), nil
}

func (b *Bus) deliver(ctx context.Context, ev Event, h HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			if b.onPanic != nil {
				b.onPanic(ev, r)
			}
		}
	}()
	h(ctx, ev)
	b.delivered.Add(1)
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerPanics: b.panics.Load(),
		Subscriptions: n,
	}
}
