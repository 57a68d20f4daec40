package contract

import (
	"context"
	"sort"

	"github.com/wippyai/mfe-bridge/reactive"
)

// Factory creates component instances.
type Factory interface {
	New(ctx context.Context) (any, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (any, error)

func (f FactoryFunc) New(ctx context.Context) (any, error) {
	return f(ctx)
}

// Namespace maps export names to factories.
type Namespace map[string]Factory

// Lookup returns the factory registered under name.
func (ns Namespace) Lookup(name string) (Factory, bool) {
	f, ok := ns[name]
	if !ok || f == nil {
		return nil, false
	}
	return f, true
}

// Names returns the export names in sorted order.
func (ns Namespace) Names() []string {
	names := make([]string, 0, len(ns))
	for name := range ns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertySetter accepts named inputs.
type PropertySetter interface {
	SetProperty(name string, value any) error
}

// PropertyGetter reports the last value written to a property.
type PropertyGetter interface {
	Property(name string) (any, bool)
}

// Refresher re-renders visible state after inputs changed.
type Refresher interface {
	Refresh()
}

// Destroyer releases component resources.
type Destroyer interface {
	Destroy()
}

// OutputSource enumerates the component's event emitters by property name.
type OutputSource interface {
	Outputs() map[string]reactive.EventSource
}

// ContentReceiver accepts a body fragment forwarded by the host.
type ContentReceiver interface {
	SetContent(content any)
}

// Initializer is called once after the component is mounted. The returned
// function, if non-nil, runs when the component is destroyed.
type Initializer interface {
	Init() func()
}

// RemoteComponentContract is the full explicit contract. Components that
// implement it are driven without reflection.
type RemoteComponentContract interface {
	PropertySetter
	Refresher
	Destroyer
	OutputSource
}

// Satisfies reports whether v implements the full contract.
func Satisfies(v any) bool {
	_, ok := v.(RemoteComponentContract)
	return ok
}
