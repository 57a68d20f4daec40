package bridge

import (
	"context"
	"reflect"
	"sort"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/reactive"
	"github.com/wippyai/mfe-bridge/remote"
)

// Resolver turns a spec into the namespace of its module.
// *remote.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, spec remote.Spec) (contract.Namespace, error)
}

// Inputs maps property names to values. Values implementing reactive.Source
// are observed; all others are copied once per projection.
type Inputs map[string]any

// Keys returns the input names in sorted order.
func (in Inputs) Keys() []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OutputEvent is one emission of a remote component's emitter.
type OutputEvent struct {
	Payload  any    `json:"payload"`
	Property string `json:"property"`
}

// State is the lifecycle state of a Controller.
type State int32

const (
	StateUnmounted State = iota
	StateLoading
	StateMounted
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateLoading:
		return "loading"
	case StateMounted:
		return "mounted"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// sameSource reports whether a and b are the same reactive source.
func sameSource(a, b reactive.Source) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
