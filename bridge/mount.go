package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
)

// Mount creates an instance of export and attaches it to point. Any
// instance already at point is destroyed first, including its output
// subscriptions.
func Mount(ctx context.Context, ns contract.Namespace, export string, point *MountPoint) (inst *LiveInstance, err error) {
	f, ok := ns.Lookup(export)
	if !ok {
		return nil, errors.ExportNotFound("", "", export)
	}

	if prev := point.take(); prev != nil {
		prev.Destroy()
	}

	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = errors.Instantiation(export, errors.Panic(errors.PhaseMount, r))
		}
	}()

	v, err := f.New(ctx)
	if err != nil {
		return nil, errors.Instantiation(export, err)
	}
	if v == nil {
		return nil, errors.Instantiation(export, errors.InvalidData(errors.PhaseMount, "factory returned nil"))
	}

	decl, _ := contract.DeclarationOf(f)
	inst = newLiveInstance(v, export, decl, point)
	point.put(inst)

	Logger().Debug("instance mounted",
		zap.String("id", inst.id),
		zap.String("export", export),
		zap.String("point", point.Name()))
	return inst, nil
}
