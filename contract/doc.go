// Package contract defines what a remote component may offer the host and
// how the host talks to components whose shape it does not know.
//
// A component is any value produced by a Factory. The host never requires a
// particular type. Instead it checks optional capabilities:
//
//	PropertySetter   SetProperty(name, value) error
//	Refresher        Refresh()
//	Destroyer        Destroy()
//	OutputSource     Outputs() map[string]reactive.EventSource
//	ContentReceiver  SetContent(content)
//	Initializer      Init() func()
//
// When a capability is absent, Adapt falls back to reflection: inputs are
// written to exported struct fields (or map keys), and outputs are found by
// scanning fields for values that implement reactive.EventSource. Writes to
// properties the component does not declare are kept in an overflow bag
// rather than rejected.
package contract
