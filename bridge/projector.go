package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
)

// Projector copies Inputs onto a LiveInstance and keeps reactive inputs in
// sync for the instance's lifetime.
type Projector struct {
	logger *zap.Logger
}

// NewProjector creates a projector. A nil logger uses the package logger.
func NewProjector(l *zap.Logger) *Projector {
	if l == nil {
		l = Logger()
	}
	return &Projector{logger: l}
}

// Project applies inputs to inst. Static values are written now. Reactive
// values are written now and observed; an observation already held for the
// same key and the same source is kept, observations for keys that are no
// longer reactive inputs are cancelled. Unknown keys are written anyway.
//
// A failing key does not stop the others; all failures are returned
// together as *errors.ProjectionErrors. Refresh runs once at the end.
func (p *Projector) Project(inst *LiveInstance, inputs Inputs) error {
	if inst.Destroyed() {
		return errors.New(errors.PhaseProject, errors.KindInvalidInput).
			Export(inst.export).
			Detail("projection onto destroyed instance").
			Build()
	}

	var failures errors.ProjectionErrors
	kept := p.abandon(inst, inputs)

	for _, key := range inputs.Keys() {
		v := inputs[key]
		src, reactiveInput := v.(reactive.Source)
		if !reactiveInput {
			if err := inst.set(key, v); err != nil {
				failures.Add(err)
			}
			continue
		}
		if kept[key] {
			continue
		}
		if err := p.observe(inst, key, src); err != nil {
			failures.Add(err)
		}
	}

	inst.refresh()

	if err := failures.Err(); err != nil {
		p.logger.Debug("projection errors",
			zap.String("id", inst.id),
			zap.Int("failed", len(failures.Errors)))
		return err
	}
	return nil
}

// abandon cancels observations not carried over into inputs and returns the
// keys whose observation is kept.
func (p *Projector) abandon(inst *LiveInstance, inputs Inputs) map[string]bool {
	kept := make(map[string]bool)
	var dropped []*inputBinding

	inst.mu.Lock()
	for key, b := range inst.inputs {
		if src, ok := inputs[key].(reactive.Source); ok && sameSource(src, b.src) {
			kept[key] = true
			continue
		}
		dropped = append(dropped, b)
		delete(inst.inputs, key)
	}
	inst.mu.Unlock()

	for _, b := range dropped {
		b.sub.Unsubscribe()
	}
	return kept
}

// observe subscribes to src before reading its current value so that no
// change between the two is lost.
func (p *Projector) observe(inst *LiveInstance, key string, src reactive.Source) (failure *errors.Error) {
	defer func() {
		if r := recover(); r != nil {
			failure = errors.PropertyProjection(errors.PhaseProject, inst.export, key, errors.Panic(errors.PhaseProject, r))
		}
	}()

	sub := src.Observe(func(v any) { inst.observe(key, v) })

	inst.mu.Lock()
	if inst.inputs == nil {
		inst.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	inst.inputs[key] = &inputBinding{src: src, sub: sub}
	inst.mu.Unlock()

	return inst.set(key, src.Value())
}
