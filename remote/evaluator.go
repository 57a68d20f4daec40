package remote

import (
	"context"

	"github.com/wippyai/mfe-bridge/contract"
)

// Bundle is a fetched module artifact ready for evaluation.
type Bundle struct {
	Exposed Exposed
	Key     Key
	URL     string
	Source  []byte
}

// Declaration returns the manifest declaration for an export.
func (b *Bundle) Declaration(export string) (contract.Declaration, bool) {
	d, ok := b.Exposed.Exports[export]
	return d, ok
}

// Evaluator turns artifact bytes into a namespace of component factories.
type Evaluator interface {
	Evaluate(ctx context.Context, b *Bundle) (contract.Namespace, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, b *Bundle) (contract.Namespace, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, b *Bundle) (contract.Namespace, error) {
	return f(ctx, b)
}

// Closer is implemented by evaluators holding runtime resources.
type Closer interface {
	Close(ctx context.Context) error
}

// DeclareAll attaches the bundle's manifest declarations to every factory
// in ns that has one.
func DeclareAll(ns contract.Namespace, b *Bundle) contract.Namespace {
	for name, f := range ns {
		if d, ok := b.Declaration(name); ok {
			ns[name] = contract.Declare(f, d)
		}
	}
	return ns
}
