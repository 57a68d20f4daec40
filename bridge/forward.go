package bridge

import "github.com/wippyai/mfe-bridge/reactive"

// Forward re-emits src's events on dst, as a wrapper component re-exposes
// the outputs of the bridge it contains. With names given, only those
// properties pass.
func Forward(src, dst *reactive.Emitter[OutputEvent], names ...string) reactive.Subscription {
	var allow map[string]bool
	if len(names) > 0 {
		allow = make(map[string]bool, len(names))
		for _, n := range names {
			allow[n] = true
		}
	}
	return src.Subscribe(func(ev OutputEvent) {
		if allow != nil && !allow[ev.Property] {
			return
		}
		dst.Emit(ev)
	})
}
