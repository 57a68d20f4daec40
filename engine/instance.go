package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
)

// Instance is a live guest component. It implements
// contract.RemoteComponentContract.
type Instance struct {
	ctx     context.Context
	module  *GuestModule
	types   map[string]wit.Type
	props   map[string]any
	outputs map[string]*reactive.Event
	export  string
	id      string
	mu      sync.Mutex
	handle  uint32
	gone    bool
}

var (
	_ contract.RemoteComponentContract = (*Instance)(nil)
	_ contract.PropertyGetter          = (*Instance)(nil)
)

func (g *GuestModule) newInstance(ctx context.Context, export string, decl contract.Declaration, types map[string]wit.Type) (*Instance, error) {
	results, err := g.call(ctx, export+suffixNew)
	if err != nil {
		return nil, errors.Instantiation(export, err)
	}
	if len(results) == 0 {
		return nil, errors.Instantiation(export, errors.InvalidData(errors.PhaseGuest, export+suffixNew+" returned no handle"))
	}

	inst := &Instance{
		ctx:     context.WithoutCancel(ctx),
		module:  g,
		export:  export,
		handle:  uint32(results[0]),
		id:      uuid.NewString(),
		types:   types,
		props:   make(map[string]any),
		outputs: make(map[string]*reactive.Event),
	}

	names, err := g.outputNames(ctx, export)
	if err != nil {
		inst.Destroy()
		return nil, errors.Instantiation(export, err)
	}
	for _, name := range append(names, decl.Outputs...) {
		if _, ok := inst.outputs[name]; !ok {
			inst.outputs[name] = reactive.NewEvent()
		}
	}

	g.register(inst.handle, inst)
	Logger().Debug("guest instance created",
		zap.String("module", g.name),
		zap.String("export", export),
		zap.String("id", inst.id),
		zap.Uint32("handle", inst.handle))
	return inst, nil
}

// ID returns the unique identifier of this instance.
func (i *Instance) ID() string {
	return i.id
}

// Export returns the component export name.
func (i *Instance) Export() string {
	return i.export
}

// Handle returns the guest-side handle.
func (i *Instance) Handle() uint32 {
	return i.handle
}

// SetProperty coerces value to the declared input type, encodes it and
// hands it to the guest.
func (i *Instance) SetProperty(name string, value any) error {
	if i.destroyed() {
		return errors.PropertyProjection(errors.PhaseProject, i.export, name,
			errors.Unsupported(errors.PhaseGuest, "instance destroyed"))
	}
	if t, ok := i.types[name]; ok {
		v, err := Coerce(t, value)
		if err != nil {
			return errors.PropertyProjection(errors.PhaseProject, i.export, name, err)
		}
		value = v
	}

	fn := i.export + suffixSet
	if !i.module.HasExport(fn) {
		return errors.PropertyProjection(errors.PhaseProject, i.export, name,
			errors.NotFound(errors.PhaseGuest, "guest export", fn))
	}
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return errors.PropertyProjection(errors.PhaseProject, i.export, name, err)
	}

	g := i.module
	_, err = g.callLocked(i.ctx, func(ctx context.Context) ([]uint64, error) {
		kp, err := g.write(ctx, []byte(name))
		if err != nil {
			return nil, err
		}
		vp, err := g.write(ctx, payload)
		if err != nil {
			return nil, err
		}
		return g.invoke(ctx, fn,
			uint64(i.handle),
			uint64(kp), uint64(len(name)),
			uint64(vp), uint64(len(payload)))
	})
	g.flush()
	if err != nil {
		return errors.PropertyProjection(errors.PhaseProject, i.export, name, err)
	}

	i.mu.Lock()
	i.props[name] = value
	i.mu.Unlock()
	return nil
}

// Property returns the last value written to name.
func (i *Instance) Property(name string) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.props[name]
	return v, ok
}

// Refresh calls X_refresh when the guest exports it.
func (i *Instance) Refresh() {
	if i.destroyed() {
		return
	}
	fn := i.export + suffixRefresh
	if !i.module.HasExport(fn) {
		return
	}
	if _, err := i.module.call(i.ctx, fn, uint64(i.handle)); err != nil {
		Logger().Debug("guest refresh failed", zap.String("export", i.export), zap.Error(err))
	}
}

// Destroy calls X_destroy once and stops event delivery.
func (i *Instance) Destroy() {
	i.mu.Lock()
	if i.gone {
		i.mu.Unlock()
		return
	}
	i.gone = true
	i.mu.Unlock()

	i.module.unregister(i.handle)
	fn := i.export + suffixDestroy
	if !i.module.HasExport(fn) {
		return
	}
	if _, err := i.module.call(i.ctx, fn, uint64(i.handle)); err != nil {
		Logger().Debug("guest destroy failed", zap.String("export", i.export), zap.Error(err))
	}
}

// Outputs implements contract.OutputSource.
func (i *Instance) Outputs() map[string]reactive.EventSource {
	out := make(map[string]reactive.EventSource, len(i.outputs))
	for name, ev := range i.outputs {
		out[name] = ev
	}
	return out
}

func (i *Instance) destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.gone
}

func (i *Instance) dispatch(name string, payload any) {
	if i.destroyed() {
		return
	}
	ev, ok := i.outputs[name]
	if !ok {
		Logger().Debug("emit to undeclared output",
			zap.String("export", i.export),
			zap.String("output", name))
		return
	}
	ev.Emit(payload)
}
