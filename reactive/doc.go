// Package reactive provides observable values and event emitters.
//
// Cell[T] wraps a value and notifies bindings when it is set. Emitter[T]
// delivers discrete events to subscribers. Both hand out Subscription
// handles; a cancelled subscription never fires again.
//
//	count := reactive.NewCell(0)
//	sub := count.Bind(func(v int) {
//	    fmt.Println("count changed to", v)
//	})
//	count.Set(5)     // prints "count changed to 5"
//	sub.Unsubscribe()
//
// Callbacks run synchronously on the goroutine that calls Set or Emit,
// outside of any internal lock, in registration order.
//
// The untyped Source and EventSource interfaces let code that has no
// compile-time knowledge of T (such as the remote component bridge) observe
// cells and emitters by shape.
package reactive
