package reactive

// EventSource is anything that delivers events to untyped subscribers.
// The bridge discovers component outputs by checking for this shape.
type EventSource interface {
	SubscribeAny(fn func(any)) Subscription
}

// Emitter delivers events of type T to its subscribers.
// The zero value is ready to use.
type Emitter[T any] struct {
	subs bindings[T]
}

// Event is an untyped emitter, convenient for interpreted components.
type Event = Emitter[any]

// NewEmitter creates an emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// NewEvent creates an untyped emitter.
func NewEvent() *Event {
	return &Event{}
}

// Emit delivers v to every active subscriber.
func (e *Emitter[T]) Emit(v T) {
	e.subs.fire(v)
}

// Subscribe registers fn for future events.
func (e *Emitter[T]) Subscribe(fn func(T)) Subscription {
	return e.subs.add(fn)
}

// SubscribeAny implements EventSource.
func (e *Emitter[T]) SubscribeAny(fn func(any)) Subscription {
	return e.subs.add(func(v T) { fn(v) })
}

// Subscribers returns the number of active subscriptions.
func (e *Emitter[T]) Subscribers() int {
	return e.subs.count()
}
