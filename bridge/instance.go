package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
)

// LiveInstance is a mounted component. It is owned by exactly one
// MountPoint and is never reused after Destroy.
type LiveInstance struct {
	comp    *contract.Component
	point   *MountPoint
	report  func(error)
	cleanup func()
	inputs  map[string]*inputBinding
	pending map[string]any
	decl    contract.Declaration
	export  string
	id      string
	outputs []reactive.Subscription
	mu      sync.Mutex
	started bool
	gone    atomic.Bool
}

type inputBinding struct {
	src reactive.Source
	sub reactive.Subscription
}

func newLiveInstance(v any, export string, decl contract.Declaration, point *MountPoint) *LiveInstance {
	return &LiveInstance{
		comp:    contract.Adapt(v),
		point:   point,
		decl:    decl,
		export:  export,
		id:      uuid.NewString(),
		inputs:  make(map[string]*inputBinding),
		pending: make(map[string]any),
	}
}

// ID returns the unique identifier of this instance.
func (i *LiveInstance) ID() string {
	return i.id
}

// Export returns the export name the instance was created from.
func (i *LiveInstance) Export() string {
	return i.export
}

// Value returns the underlying component.
func (i *LiveInstance) Value() any {
	return i.comp.Value()
}

// Declaration returns the manifest declaration of the export, if any.
func (i *LiveInstance) Declaration() contract.Declaration {
	return i.decl
}

// Property reads a property of the component.
func (i *LiveInstance) Property(name string) (any, bool) {
	return i.comp.Get(name)
}

// Destroyed reports whether Destroy has run.
func (i *LiveInstance) Destroyed() bool {
	return i.gone.Load()
}

// Observed returns the number of reactive inputs currently observed.
func (i *LiveInstance) Observed() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.inputs)
}

// Relayed returns the number of bound output subscriptions.
func (i *LiveInstance) Relayed() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.outputs)
}

// Start runs the component's Initializer and applies reactive changes
// that arrived while the instance was being wired. It runs once.
func (i *LiveInstance) Start() error {
	if i.Destroyed() {
		return errors.New(errors.PhaseLifecycle, errors.KindInvalidInput).
			Export(i.export).
			Detail("start of destroyed instance").
			Build()
	}

	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return nil
	}
	i.started = true
	pending := i.pending
	i.pending = nil
	i.mu.Unlock()

	cleanup, err := i.comp.Init()
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.cleanup = cleanup
	i.mu.Unlock()

	if len(pending) > 0 {
		for _, key := range Inputs(pending).Keys() {
			i.apply(key, pending[key])
		}
		i.refresh()
	}
	return nil
}

// Destroy cancels reactive observation and output relaying, then releases
// the component. It is idempotent.
func (i *LiveInstance) Destroy() {
	if !i.gone.CompareAndSwap(false, true) {
		return
	}

	i.mu.Lock()
	inputs := i.inputs
	outputs := i.outputs
	cleanup := i.cleanup
	i.inputs = nil
	i.outputs = nil
	i.pending = nil
	i.cleanup = nil
	i.mu.Unlock()

	for _, b := range inputs {
		b.sub.Unsubscribe()
	}
	reactive.UnsubscribeAll(outputs)

	if cleanup != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					i.fail(errors.Panic(errors.PhaseLifecycle, r))
				}
			}()
			cleanup()
		}()
	}
	if err := i.comp.Destroy(); err != nil {
		i.fail(err)
	}
	if i.point != nil {
		i.point.vacate(i)
	}

	Logger().Debug("instance destroyed", zap.String("id", i.id), zap.String("export", i.export))
}

// set writes one property and wraps failures as projection errors.
func (i *LiveInstance) set(key string, v any) *errors.Error {
	if err := i.comp.Set(key, v); err != nil {
		if be, ok := err.(*errors.Error); ok && be.Kind == errors.KindPropertyProjection {
			return be
		}
		return errors.PropertyProjection(errors.PhaseProject, i.export, key, err)
	}
	return nil
}

func (i *LiveInstance) refresh() {
	if i.Destroyed() {
		return
	}
	if err := i.comp.Refresh(); err != nil {
		i.fail(err)
	}
}

// apply writes a reactive update unless the instance is gone.
func (i *LiveInstance) apply(key string, v any) {
	if i.Destroyed() {
		return
	}
	if err := i.set(key, v); err != nil {
		i.fail(err)
	}
}

// observe handles a change notification from a reactive input.
func (i *LiveInstance) observe(key string, v any) {
	if i.Destroyed() {
		return
	}
	i.mu.Lock()
	if !i.started {
		if i.pending != nil {
			i.pending[key] = v
		}
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()

	i.apply(key, v)
	i.refresh()
}

func (i *LiveInstance) fail(err error) {
	if i.report != nil {
		i.report(err)
		return
	}
	Logger().Warn("instance error", zap.String("id", i.id), zap.Error(err))
}

// addOutputs records relay subscriptions. If the instance was destroyed in
// the meantime they are cancelled immediately.
func (i *LiveInstance) addOutputs(subs []reactive.Subscription) {
	i.mu.Lock()
	if !i.gone.Load() {
		i.outputs = append(i.outputs, subs...)
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()
	reactive.UnsubscribeAll(subs)
}
