package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
)

// Relay re-emits every emission of an instance's emitters as an
// OutputEvent on a single host-visible emitter.
type Relay struct {
	out    *reactive.Emitter[OutputEvent]
	logger *zap.Logger
}

// NewRelay creates a relay publishing to out. A nil logger uses the package
// logger.
func NewRelay(out *reactive.Emitter[OutputEvent], l *zap.Logger) *Relay {
	if l == nil {
		l = Logger()
	}
	return &Relay{out: out, logger: l}
}

// Bind enumerates inst's emitters once and subscribes to each one the
// export's declaration allows. The subscriptions are owned by inst and
// cancelled when it is destroyed; they are returned for inspection.
func (r *Relay) Bind(inst *LiveInstance) ([]reactive.Subscription, error) {
	if inst.Destroyed() {
		return nil, errors.New(errors.PhaseBind, errors.KindInvalidInput).
			Export(inst.export).
			Detail("bind of destroyed instance").
			Build()
	}

	outs, err := inst.comp.Outputs()
	if err != nil {
		return nil, errors.New(errors.PhaseBind, errors.KindInvalidData).
			Export(inst.export).
			Detail("enumerate outputs").
			Cause(err).
			Build()
	}

	subs := make([]reactive.Subscription, 0, len(outs))
	for _, name := range contract.OutputNames(outs) {
		if !inst.decl.AllowsOutput(name) {
			r.logger.Debug("output not declared, skipping",
				zap.String("id", inst.id),
				zap.String("output", name))
			continue
		}
		sub, err := r.subscribe(inst, name, outs[name])
		if err != nil {
			reactive.UnsubscribeAll(subs)
			return nil, err
		}
		subs = append(subs, sub)
	}

	inst.addOutputs(subs)
	r.logger.Debug("outputs bound",
		zap.String("id", inst.id),
		zap.Int("count", len(subs)))
	return subs, nil
}

func (r *Relay) subscribe(inst *LiveInstance, name string, src reactive.EventSource) (sub reactive.Subscription, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New(errors.PhaseBind, errors.KindInvalidData).
				Export(inst.export).
				Property(name).
				Detail("subscribe").
				Cause(errors.Panic(errors.PhaseBind, rec)).
				Build()
		}
	}()
	return src.SubscribeAny(func(payload any) {
		if inst.Destroyed() {
			return
		}
		r.out.Emit(OutputEvent{Property: name, Payload: payload})
	}), nil
}
