package script

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/remote"
)

const constructorPrefix = "New"

// Evaluator implements remote.Evaluator for the go format.
type Evaluator struct {
	extra  interp.Exports
	logger *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSymbols makes additional host packages importable.
func WithSymbols(exports interp.Exports) Option {
	return func(e *Evaluator) {
		e.extra = exports
	}
}

// WithLogger sets the evaluator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// source is the parsed shape of a bundle.
type source struct {
	pkg     string
	imports []string
	exports []string
}

func parseSource(src []byte) (*source, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "bundle.go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInvalidData, err, "parse Go bundle")
	}
	if f.Name.Name == "main" {
		return nil, errors.InvalidData(errors.PhaseEvaluate, "Go bundle must not be package main")
	}

	s := &source{pkg: f.Name.Name}
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInvalidData, err, "import path")
		}
		s.imports = append(s.imports, path)
	}
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Type.TypeParams != nil {
			continue
		}
		if name, ok := exportName(fn.Name.Name); ok {
			s.exports = append(s.exports, name)
		}
	}
	sort.Strings(s.exports)
	return s, nil
}

// exportName maps a constructor name NewX to X.
func exportName(fn string) (string, bool) {
	name, ok := strings.CutPrefix(fn, constructorPrefix)
	if !ok || name == "" || !unicode.IsUpper([]rune(name)[0]) {
		return "", false
	}
	return name, true
}

// checkImports rejects imports the interpreter cannot or may not serve.
func (e *Evaluator) checkImports(s *source, allowed []string) error {
	available := importPaths(Symbols, e.extra)

	var allow map[string]bool
	if len(allowed) > 0 {
		allow = map[string]bool{ReactivePath: true, ContractPath: true}
		for _, p := range allowed {
			allow[p] = true
		}
	}

	for _, p := range s.imports {
		if !available[p] && !stdlibPaths[p] {
			return errors.Unsupported(errors.PhaseEvaluate, "import "+strconv.Quote(p)+" is not available to Go bundles")
		}
		if allow != nil && !allow[p] {
			return errors.Unsupported(errors.PhaseEvaluate, "import "+strconv.Quote(p)+" is not in the manifest import list")
		}
	}
	return nil
}

// Evaluate interprets the bundle and returns one factory per constructor.
func (e *Evaluator) Evaluate(ctx context.Context, b *remote.Bundle) (contract.Namespace, error) {
	s, err := parseSource(b.Source)
	if err != nil {
		return nil, err
	}
	if err := e.checkImports(s, b.Exposed.Imports); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInstantiation, err, "load stdlib symbols")
	}
	if err := i.Use(Symbols); err != nil {
		return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInstantiation, err, "load reactive symbols")
	}
	if len(e.extra) > 0 {
		if err := i.Use(e.extra); err != nil {
			return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInstantiation, err, "load host symbols")
		}
	}

	if _, err := i.EvalWithContext(ctx, string(b.Source)); err != nil {
		return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindInvalidData, err, "interpret Go bundle")
	}

	ns := make(contract.Namespace, len(s.exports))
	for _, name := range s.exports {
		v, err := i.EvalWithContext(ctx, s.pkg+"."+constructorPrefix+name)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseEvaluate, errors.KindNotFound, err, "look up constructor of "+name)
		}
		f, err := contract.ConstructorValue(v)
		if err != nil {
			e.logger.Debug("skipping non-constructor",
				zap.String("bundle", b.URL),
				zap.String("func", constructorPrefix+name),
				zap.Error(err))
			continue
		}
		ns[name] = f
	}

	e.logger.Debug("Go bundle interpreted",
		zap.String("bundle", b.URL),
		zap.String("package", s.pkg),
		zap.Strings("exports", ns.Names()))
	return remote.DeclareAll(ns, b), nil
}
