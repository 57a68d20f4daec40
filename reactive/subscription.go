package reactive

import (
	"sync"
	"sync/atomic"
)

// Subscription is a handle to a registered callback.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type funcSubscription struct {
	fn   func()
	once sync.Once
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// NewSubscription wraps fn so that it runs at most once.
func NewSubscription(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

// UnsubscribeAll cancels every subscription in subs, skipping nils.
func UnsubscribeAll(subs []Subscription) {
	for _, s := range subs {
		if s != nil {
			s.Unsubscribe()
		}
	}
}

// globalBindingID gives every binding a unique id across cells and emitters.
var globalBindingID atomic.Uint64

type binding[T any] struct {
	fn     func(T)
	id     uint64
	active bool
}

// bindings is the shared subscriber list behind Cell and Emitter.
type bindings[T any] struct {
	mu   sync.Mutex
	list []*binding[T]
}

func (b *bindings[T]) add(fn func(T)) Subscription {
	bd := &binding[T]{id: globalBindingID.Add(1), fn: fn, active: true}

	b.mu.Lock()
	b.list = append(b.list, bd)
	b.mu.Unlock()

	return NewSubscription(func() {
		b.mu.Lock()
		bd.active = false
		b.mu.Unlock()
	})
}

// snapshot returns active bindings and drops inactive ones.
func (b *bindings[T]) snapshot() []*binding[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	active := make([]*binding[T], 0, len(b.list))
	for _, bd := range b.list {
		if bd.active {
			active = append(active, bd)
		}
	}
	b.list = active
	return active
}

func (b *bindings[T]) fire(v T) {
	for _, bd := range b.snapshot() {
		// Re-check: an earlier callback may have cancelled this one.
		b.mu.Lock()
		active := bd.active
		b.mu.Unlock()
		if active {
			bd.fn(v)
		}
	}
}

func (b *bindings[T]) count() int {
	return len(b.snapshot())
}
