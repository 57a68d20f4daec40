package bridge

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
	"github.com/wippyai/mfe-bridge/remote"
)

// Controller owns a MountPoint across the lifetime of the instances
// mounted there.
type Controller struct {
	resolver  Resolver
	point     *MountPoint
	projector *Projector
	relay     *Relay
	outputs   *reactive.Emitter[OutputEvent]
	failures  *reactive.Emitter[error]
	logger    *zap.Logger
	cancel    context.CancelFunc
	content   any
	inst      *LiveInstance
	inputs    Inputs
	spec      remote.Spec
	mu        sync.Mutex
	state     State
	// hasContent distinguishes a nil body from no body.
	hasContent bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContent forwards a body fragment to every instance the controller
// mounts, through contract.ContentReceiver or the "content" property.
func WithContent(content any) Option {
	return func(c *Controller) {
		c.content = content
		c.hasContent = true
	}
}

// NewController creates a controller for point. A nil point gets a fresh
// anonymous one.
func NewController(resolver Resolver, point *MountPoint, opts ...Option) *Controller {
	if point == nil {
		point = NewMountPoint("")
	}
	c := &Controller{
		resolver: resolver,
		point:    point,
		outputs:  reactive.NewEmitter[OutputEvent](),
		failures: reactive.NewEmitter[error](),
		logger:   Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.projector = NewProjector(c.logger)
	c.relay = NewRelay(c.outputs, c.logger)
	return c
}

// Outputs is the unified stream of component emissions.
func (c *Controller) Outputs() *reactive.Emitter[OutputEvent] {
	return c.outputs
}

// Failures receives every load, mount, projection and bind failure.
func (c *Controller) Failures() *reactive.Emitter[error] {
	return c.failures
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Spec returns the spec of the current or last load.
func (c *Controller) Spec() remote.Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spec
}

// Instance returns the mounted instance, or nil.
func (c *Controller) Instance() *LiveInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inst
}

// MountPoint returns the controlled mount point.
func (c *Controller) MountPoint() *MountPoint {
	return c.point
}

// Attach loads spec and mounts it with inputs. It is valid from Unmounted
// and Destroyed. The error is returned and also published on Failures.
func (c *Controller) Attach(ctx context.Context, spec remote.Spec, inputs Inputs) error {
	c.mu.Lock()
	if c.state == StateLoading || c.state == StateMounted {
		state := c.state
		c.mu.Unlock()
		err := errors.New(errors.PhaseLifecycle, errors.KindInvalidInput).
			Remote(spec.Origin, spec.Module).
			Export(spec.Export).
			Detail("attach while %s", state).
			Build()
		c.publish(err)
		return err
	}
	c.spec = spec
	c.inputs = inputs
	loadCtx, gen := c.beginLocked(ctx)
	c.mu.Unlock()

	return c.load(loadCtx, gen, spec)
}

// SetSpec destroys the current instance and loads spec. A spec equal to the
// mounted one is a no-op.
func (c *Controller) SetSpec(ctx context.Context, spec remote.Spec) error {
	c.mu.Lock()
	if c.state == StateMounted && c.spec == spec {
		c.mu.Unlock()
		return nil
	}
	return c.reloadLocked(ctx, spec)
}

// Replace swaps spec and inputs together. A changed spec is torn down and
// reloaded with the new inputs, so the next instance is projected once; an
// unchanged mounted spec is only re-projected, as with SetInputs.
func (c *Controller) Replace(ctx context.Context, spec remote.Spec, inputs Inputs) error {
	c.mu.Lock()
	if c.state == StateMounted && c.spec == spec {
		c.mu.Unlock()
		return c.SetInputs(inputs)
	}
	c.inputs = inputs
	return c.reloadLocked(ctx, spec)
}

// reloadLocked destroys the current instance and loads spec. It must be
// called with c.mu held and releases it.
func (c *Controller) reloadLocked(ctx context.Context, spec remote.Spec) error {
	inst := c.inst
	c.inst = nil
	c.spec = spec
	loadCtx, gen := c.beginLocked(ctx)
	c.mu.Unlock()

	if inst != nil {
		inst.Destroy()
	}
	return c.load(loadCtx, gen, spec)
}

// SetInputs replaces the input map. A mounted instance is re-projected
// without being re-instantiated; otherwise the map is used by the next
// load.
func (c *Controller) SetInputs(inputs Inputs) error {
	c.mu.Lock()
	c.inputs = inputs
	inst := c.inst
	mounted := c.state == StateMounted
	c.mu.Unlock()

	if !mounted || inst == nil {
		return nil
	}
	if err := c.projector.Project(inst, inputs); err != nil {
		c.publishProjection(err)
		return err
	}
	return nil
}

// Detach cancels any in-flight load and destroys the mounted instance.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.point.advance()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	inst := c.inst
	c.inst = nil
	prev := c.state
	c.state = StateDestroyed
	c.mu.Unlock()

	if inst != nil {
		inst.Destroy()
	}
	c.point.Release()

	c.logger.Debug("detached",
		zap.String("point", c.point.Name()),
		zap.Stringer("from", prev))
}

// beginLocked starts a new load generation. The load context stays alive
// while its instance is mounted. Must hold c.mu.
func (c *Controller) beginLocked(ctx context.Context) (context.Context, uint64) {
	if c.cancel != nil {
		c.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateLoading
	return loadCtx, c.point.advance()
}

// current reports whether gen is still the live generation.
func (c *Controller) current(gen uint64) bool {
	return c.point.Generation() == gen
}

func (c *Controller) load(ctx context.Context, gen uint64, spec remote.Spec) error {
	log := c.logger.With(
		zap.String("point", c.point.Name()),
		zap.Stringer("spec", spec),
		zap.Uint64("generation", gen))
	log.Debug("loading")

	ns, err := c.resolver.Resolve(ctx, spec)
	if !c.current(gen) {
		log.Debug("load superseded")
		return errors.Cancelled(spec.Origin, spec.Module, "load superseded")
	}
	if err != nil {
		if !errors.IsRemoteLoad(err) {
			err = errors.RemoteLoad(errors.PhaseResolve, spec.Origin, spec.Module, err)
		}
		return c.fail(gen, err)
	}

	inst, err := Mount(ctx, ns, spec.Export, c.point)
	if err != nil {
		var be *errors.Error
		if stderrors.As(err, &be) && be.Kind == errors.KindExportNotFound {
			be.Origin, be.Module = spec.Origin, spec.Module
		}
		return c.fail(gen, err)
	}
	inst.report = c.publish
	if !c.current(gen) {
		inst.Destroy()
		return errors.Cancelled(spec.Origin, spec.Module, "load superseded")
	}

	c.mu.Lock()
	inputs := c.inputs
	c.mu.Unlock()

	if err := c.projector.Project(inst, inputs); err != nil {
		c.publishProjection(err)
	}
	if c.hasContent {
		if err := inst.comp.SetContent(c.content); err != nil {
			c.publish(errors.PropertyProjection(errors.PhaseProject, spec.Export, "content", err))
		}
	}

	if _, err := c.relay.Bind(inst); err != nil {
		inst.Destroy()
		return c.fail(gen, err)
	}

	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		inst.Destroy()
		return errors.Cancelled(spec.Origin, spec.Module, "load superseded")
	}
	c.inst = inst
	c.state = StateMounted
	c.mu.Unlock()

	if err := inst.Start(); err != nil {
		c.publish(err)
	}

	log.Info("mounted",
		zap.String("id", inst.ID()),
		zap.Int("observed", inst.Observed()),
		zap.Int("outputs", inst.Relayed()))
	return nil
}

// fail returns the controller to Unmounted when gen is still current and
// publishes err.
func (c *Controller) fail(gen uint64, err error) error {
	c.mu.Lock()
	if c.current(gen) {
		c.state = StateUnmounted
		c.inst = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()

	c.logger.Warn("load failed", zap.String("point", c.point.Name()), zap.Error(err))
	c.publish(err)
	return err
}

func (c *Controller) publish(err error) {
	c.failures.Emit(err)
}

// publishProjection reports each per-key failure separately.
func (c *Controller) publishProjection(err error) {
	var perrs *errors.ProjectionErrors
	if stderrors.As(err, &perrs) {
		for _, e := range perrs.Errors {
			c.publish(e)
		}
		return
	}
	c.publish(err)
}
