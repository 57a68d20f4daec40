package script

import (
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/reactive"
)

// Import paths interpreted bundles use for bridge types.
const (
	ReactivePath = "github.com/wippyai/mfe-bridge/reactive"
	ContractPath = "github.com/wippyai/mfe-bridge/contract"
)

// Symbols exposes the reactive and contract packages to interpreted code.
// Interface wrappers follow the layout yaegi extract generates, so that
// interpreted types returned as one of these interfaces keep their methods.
var Symbols = interp.Exports{
	ReactivePath + "/reactive": {
		"Event":           reflect.ValueOf((*reactive.Event)(nil)),
		"EventSource":     reflect.ValueOf((*reactive.EventSource)(nil)),
		"NewEvent":        reflect.ValueOf(reactive.NewEvent),
		"NewSubscription": reflect.ValueOf(reactive.NewSubscription),
		"Subscription":    reflect.ValueOf((*reactive.Subscription)(nil)),
		"UnsubscribeAll":  reflect.ValueOf(reactive.UnsubscribeAll),
	},
	ContractPath + "/contract": {
		"ContentProperty":          reflect.ValueOf(contract.ContentProperty),
		"PropertySetter":           reflect.ValueOf((*contract.PropertySetter)(nil)),
		"RemoteComponentContract":  reflect.ValueOf((*contract.RemoteComponentContract)(nil)),
		"_PropertySetter":          reflect.ValueOf((*_contract_PropertySetter)(nil)),
		"_RemoteComponentContract": reflect.ValueOf((*_contract_RemoteComponentContract)(nil)),
	},
}

// _contract_PropertySetter is an interface wrapper for PropertySetter type
type _contract_PropertySetter struct {
	IValue       interface{}
	WSetProperty func(name string, value any) error
}

func (W _contract_PropertySetter) SetProperty(name string, value any) error {
	return W.WSetProperty(name, value)
}

// _contract_RemoteComponentContract is an interface wrapper for RemoteComponentContract type
type _contract_RemoteComponentContract struct {
	IValue       interface{}
	WDestroy     func()
	WOutputs     func() map[string]reactive.EventSource
	WRefresh     func()
	WSetProperty func(name string, value any) error
}

func (W _contract_RemoteComponentContract) Destroy() {
	W.WDestroy()
}

func (W _contract_RemoteComponentContract) Outputs() map[string]reactive.EventSource {
	return W.WOutputs()
}

func (W _contract_RemoteComponentContract) Refresh() {
	W.WRefresh()
}

func (W _contract_RemoteComponentContract) SetProperty(name string, value any) error {
	return W.WSetProperty(name, value)
}

// importPaths lists the import paths available from the given symbol tables.
func importPaths(tables ...interp.Exports) map[string]bool {
	paths := make(map[string]bool)
	for _, t := range tables {
		for key := range t {
			if i := strings.LastIndexByte(key, '/'); i > 0 {
				paths[key[:i]] = true
			}
		}
	}
	return paths
}

var stdlibPaths = importPaths(stdlib.Symbols)
