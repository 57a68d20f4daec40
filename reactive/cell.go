package reactive

import "sync"

// Source is a value that can be read now and observed for future changes.
// Any *Cell[T] is a Source.
type Source interface {
	Value() any
	Observe(fn func(any)) Subscription
}

// Cell wraps a value and notifies bindings when it changes.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	subs  bindings[T]
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies every active binding with it.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()

	c.subs.fire(v)
}

// Update applies fn to the current value and sets the result.
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.Get()))
}

// Bind registers fn to be called with every new value.
func (c *Cell[T]) Bind(fn func(T)) Subscription {
	return c.subs.add(fn)
}

// Value implements Source.
func (c *Cell[T]) Value() any {
	return c.Get()
}

// Observe implements Source.
func (c *Cell[T]) Observe(fn func(any)) Subscription {
	return c.subs.add(func(v T) { fn(v) })
}

// Observers returns the number of active bindings.
func (c *Cell[T]) Observers() int {
	return c.subs.count()
}
