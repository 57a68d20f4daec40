package contract

import (
	"context"
	"reflect"

	"github.com/wippyai/mfe-bridge/errors"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Constructor builds a Factory from a constructor function of one of the
// shapes
//
//	func() T
//	func() (T, error)
//	func(context.Context) T
//	func(context.Context) (T, error)
//
// It is used for constructors obtained through reflection, where the
// concrete signature is only known at runtime.
func Constructor(fn any) (Factory, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.InvalidInput(errors.PhaseEvaluate, "constructor must be a function")
	}
	return constructorValue(rv)
}

// ConstructorValue is Constructor for an already reflected function value.
func ConstructorValue(rv reflect.Value) (Factory, error) {
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.InvalidInput(errors.PhaseEvaluate, "constructor must be a function")
	}
	return constructorValue(rv)
}

func constructorValue(rv reflect.Value) (Factory, error) {
	ft := rv.Type()

	takesCtx := false
	switch ft.NumIn() {
	case 0:
	case 1:
		if ft.In(0) != contextType {
			return nil, errors.InvalidInput(errors.PhaseEvaluate, "constructor parameter must be context.Context, got "+ft.In(0).String())
		}
		takesCtx = true
	default:
		return nil, errors.InvalidInput(errors.PhaseEvaluate, "constructor takes at most one parameter")
	}

	returnsErr := false
	switch ft.NumOut() {
	case 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return nil, errors.InvalidInput(errors.PhaseEvaluate, "second constructor result must be error")
		}
		returnsErr = true
	default:
		return nil, errors.InvalidInput(errors.PhaseEvaluate, "constructor must return T or (T, error)")
	}

	return FactoryFunc(func(ctx context.Context) (inst any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Panic(errors.PhaseMount, r)
			}
		}()

		var args []reflect.Value
		if takesCtx {
			args = []reflect.Value{reflect.ValueOf(&ctx).Elem()}
		}
		out := rv.Call(args)
		if returnsErr && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}), nil
}
