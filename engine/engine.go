package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/remote"
)

// Engine evaluates WebAssembly bundles on a shared wazero runtime.
type Engine struct {
	runtime wazero.Runtime
	modules map[string]*GuestModule
	mu      sync.RWMutex
	seq     atomic.Uint64
	closed  bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per guest in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// New creates an engine and registers the "bridge" host module.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		modules: make(map[string]*GuestModule),
	}

	i32 := api.ValueTypeI32
	_, err := e.runtime.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostEmit), []api.ValueType{i32, i32, i32, i32, i32}, nil).
		WithParameterNames("handle", "name_ptr", "name_len", "payload_ptr", "payload_len").
		Export(hostEmitName).
		Instantiate(ctx)
	if err != nil {
		_ = e.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}
	return e, nil
}

// hostEmit routes a guest emission to the module that made it.
func (e *Engine) hostEmit(_ context.Context, mod api.Module, stack []uint64) {
	e.mu.RLock()
	gm := e.modules[mod.Name()]
	e.mu.RUnlock()
	if gm == nil {
		Logger().Debug("emit from unknown module", zap.String("module", mod.Name()))
		return
	}

	handle := uint32(stack[0])
	name, ok := mod.Memory().Read(uint32(stack[1]), uint32(stack[2]))
	if !ok {
		Logger().Debug("emit name out of range", zap.String("module", mod.Name()))
		return
	}
	payload, ok := mod.Memory().Read(uint32(stack[3]), uint32(stack[4]))
	if !ok {
		Logger().Debug("emit payload out of range", zap.String("module", mod.Name()))
		return
	}
	// Guest memory may be reused after the call returns.
	gm.enqueue(handle, string(name), append([]byte(nil), payload...))
}

// Load compiles and instantiates a guest module.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*GuestModule, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.Unsupported(errors.PhaseEvaluate, "engine is closed")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInvalidData, err, "compile guest module")
	}

	funcs := make(map[string]bool)
	for name := range compiled.ExportedFunctions() {
		funcs[name] = true
	}
	if !funcs[exportAlloc] {
		_ = compiled.Close(ctx)
		return nil, errors.NotFound(errors.PhaseEvaluate, "guest export", exportAlloc)
	}
	if _, ok := compiled.ExportedMemories()[exportMemory]; !ok {
		_ = compiled.Close(ctx)
		return nil, errors.NotFound(errors.PhaseEvaluate, "guest export", exportMemory)
	}

	name := fmt.Sprintf("remote-%d", e.seq.Add(1))
	gm := &GuestModule{
		engine:   e,
		compiled: compiled,
		name:     name,
		funcs:    funcs,
		handles:  make(map[uint32]*Instance),
	}

	// Registered before instantiation so a start function may emit.
	e.mu.Lock()
	e.modules[name] = gm
	e.mu.Unlock()

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		e.forget(name)
		_ = compiled.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInstantiation, err, "instantiate guest module")
	}
	gm.mod = mod

	Logger().Debug("guest module loaded",
		zap.String("module", name),
		zap.Strings("components", gm.Components()))
	return gm, nil
}

// Evaluate implements remote.Evaluator for the wasm format.
func (e *Engine) Evaluate(ctx context.Context, b *remote.Bundle) (contract.Namespace, error) {
	gm, err := e.Load(ctx, b.Source)
	if err != nil {
		return nil, err
	}
	ns := make(contract.Namespace)
	for _, name := range gm.Components() {
		decl, _ := b.Declaration(name)
		f, err := gm.Factory(name, decl)
		if err != nil {
			_ = gm.Close(ctx)
			return nil, err
		}
		ns[name] = f
	}
	return remote.DeclareAll(ns, b), nil
}

// Modules returns the number of live guest modules.
func (e *Engine) Modules() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.modules)
}

func (e *Engine) forget(name string) {
	e.mu.Lock()
	delete(e.modules, name)
	e.mu.Unlock()
}

// Close releases the runtime and every guest module loaded through it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.modules = make(map[string]*GuestModule)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}
