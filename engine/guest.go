package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
)

// GuestModule is one instantiated bundle.
type GuestModule struct {
	engine   *Engine
	compiled wazero.CompiledModule
	mod      api.Module
	funcs    map[string]bool
	handles  map[uint32]*Instance
	name     string

	// mu serializes calls into the guest.
	mu sync.Mutex

	pendingMu sync.Mutex
	pending   []emission
	closed    bool
}

type emission struct {
	name    string
	payload []byte
	handle  uint32
}

// Name returns the runtime name of the module.
func (g *GuestModule) Name() string {
	return g.name
}

// Components returns the component exports in sorted order.
func (g *GuestModule) Components() []string {
	names := componentNames(g.funcs)
	sort.Strings(names)
	return names
}

// HasExport reports whether the guest exports the named function.
func (g *GuestModule) HasExport(name string) bool {
	return g.funcs[name]
}

// Factory returns a factory for component export name.
func (g *GuestModule) Factory(name string, decl contract.Declaration) (contract.Factory, error) {
	if !g.funcs[name+suffixNew] {
		return nil, errors.NotFound(errors.PhaseEvaluate, "component export", name)
	}
	types, err := parseInputTypes(decl.Inputs)
	if err != nil {
		return nil, err
	}
	return contract.FactoryFunc(func(ctx context.Context) (any, error) {
		return g.newInstance(ctx, name, decl, types)
	}), nil
}

// call invokes an exported function with the module lock held and
// delivers any queued emissions once the lock is released.
func (g *GuestModule) call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	results, err := g.callLocked(ctx, func(ctx context.Context) ([]uint64, error) {
		return g.invoke(ctx, fn, params...)
	})
	g.flush()
	return results, err
}

// callLocked runs body with the module lock held.
func (g *GuestModule) callLocked(ctx context.Context, body func(context.Context) ([]uint64, error)) ([]uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, errors.Unsupported(errors.PhaseGuest, "guest module is closed")
	}
	return body(ctx)
}

func (g *GuestModule) invoke(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	f := g.mod.ExportedFunction(fn)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseGuest, "guest export", fn)
	}
	results, err := f.Call(ctx, params...)
	if err != nil {
		return nil, errors.New(errors.PhaseGuest, errors.KindInvalidData).
			Detail("call %s", fn).
			Cause(err).
			Build()
	}
	return results, nil
}

// write copies data into guest memory through bridge_alloc.
// Must be called with the module lock held.
func (g *GuestModule) write(ctx context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	results, err := g.invoke(ctx, exportAlloc, uint64(len(data)))
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, errors.InvalidData(errors.PhaseGuest, "bridge_alloc returned no pointer")
	}
	ptr := uint32(results[0])
	if !g.mod.Memory().Write(ptr, data) {
		return 0, errors.New(errors.PhaseGuest, errors.KindInvalidData).
			Detail("write %d bytes at %#x out of range", len(data), ptr).
			Build()
	}
	return ptr, nil
}

// read copies a region of guest memory.
// Must be called with the module lock held.
func (g *GuestModule) read(ptr, length uint32) ([]byte, error) {
	buf, ok := g.mod.Memory().Read(ptr, length)
	if !ok {
		return nil, errors.New(errors.PhaseGuest, errors.KindInvalidData).
			Detail("read %d bytes at %#x out of range", length, ptr).
			Build()
	}
	return append([]byte(nil), buf...), nil
}

// outputNames asks the guest for the emitter names of a component.
func (g *GuestModule) outputNames(ctx context.Context, export string) ([]string, error) {
	fn := export + suffixOutputs
	if !g.funcs[fn] {
		return nil, nil
	}
	var raw []byte
	_, err := g.callLocked(ctx, func(ctx context.Context) ([]uint64, error) {
		results, err := g.invoke(ctx, fn)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, errors.InvalidData(errors.PhaseGuest, fn+" returned nothing")
		}
		ptr, length := unpackPtrLen(results[0])
		raw, err = g.read(ptr, length)
		return results, err
	})
	g.flush()
	if err != nil {
		return nil, err
	}
	var names []string
	if err := msgpack.Unmarshal(raw, &names); err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidData, err, "decode "+fn)
	}
	return names, nil
}

func (g *GuestModule) enqueue(handle uint32, name string, payload []byte) {
	g.pendingMu.Lock()
	g.pending = append(g.pending, emission{handle: handle, name: name, payload: payload})
	g.pendingMu.Unlock()
}

// flush delivers queued emissions in the order the guest made them.
func (g *GuestModule) flush() {
	for {
		g.pendingMu.Lock()
		batch := g.pending
		g.pending = nil
		g.pendingMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, em := range batch {
			g.deliver(em)
		}
	}
}

func (g *GuestModule) deliver(em emission) {
	g.mu.Lock()
	inst := g.handles[em.handle]
	g.mu.Unlock()
	if inst == nil {
		Logger().Debug("emit for unknown handle",
			zap.String("module", g.name),
			zap.Uint32("handle", em.handle))
		return
	}
	var payload any
	if len(em.payload) > 0 {
		if err := msgpack.Unmarshal(em.payload, &payload); err != nil {
			Logger().Debug("undecodable emit payload",
				zap.String("module", g.name),
				zap.String("output", em.name),
				zap.Error(err))
			return
		}
	}
	inst.dispatch(em.name, payload)
}

func (g *GuestModule) register(handle uint32, inst *Instance) {
	g.mu.Lock()
	g.handles[handle] = inst
	g.mu.Unlock()
}

func (g *GuestModule) unregister(handle uint32) {
	g.mu.Lock()
	delete(g.handles, handle)
	g.mu.Unlock()
}

// Instances returns the number of live instances.
func (g *GuestModule) Instances() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

// Close releases the module. Live instances stop receiving calls.
func (g *GuestModule) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.handles = make(map[uint32]*Instance)
	g.mu.Unlock()

	g.engine.forget(g.name)
	var err error
	if g.mod != nil {
		err = g.mod.Close(ctx)
	}
	if cerr := g.compiled.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close guest module %s: %w", g.name, err)
	}
	return nil
}
