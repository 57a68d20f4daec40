package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseFetch     Phase = "fetch"     // manifest or artifact download
	PhaseEvaluate  Phase = "evaluate"  // bundle compilation/interpretation
	PhaseResolve   Phase = "resolve"   // module resolution
	PhaseMount     Phase = "mount"     // component instantiation
	PhaseProject   Phase = "project"   // input projection
	PhaseBind      Phase = "bind"      // output binding
	PhaseGuest     Phase = "guest"     // calls into a loaded component
	PhaseLifecycle Phase = "lifecycle" // mount point state transitions
)

// Kind categorizes the error
type Kind string

const (
	KindRemoteLoad         Kind = "remote_load"
	KindExportNotFound     Kind = "export_not_found"
	KindPropertyProjection Kind = "property_projection"
	KindInvalidData        Kind = "invalid_data"
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
	KindUnsupported        Kind = "unsupported"
	KindInstantiation      Kind = "instantiation"
	KindCancelled          Kind = "cancelled"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Origin   string
	Module   string
	Export   string
	Property string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Origin != "" || e.Module != "" || e.Export != "" {
		b.WriteString(" at ")
		b.WriteString(e.location())
	}

	if e.Property != "" {
		b.WriteString(" property ")
		b.WriteString(e.Property)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// location renders origin, module and export as origin#module/export.
func (e *Error) location() string {
	var b strings.Builder
	b.WriteString(e.Origin)
	if e.Module != "" {
		b.WriteByte('#')
		b.WriteString(e.Module)
	}
	if e.Export != "" {
		b.WriteByte('/')
		b.WriteString(e.Export)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Phase on the target matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is matching by kind alone.
var (
	ErrRemoteLoad         = &Error{Kind: KindRemoteLoad}
	ErrExportNotFound     = &Error{Kind: KindExportNotFound}
	ErrPropertyProjection = &Error{Kind: KindPropertyProjection}
	ErrCancelled          = &Error{Kind: KindCancelled}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Remote sets the origin and module coordinates
func (b *Builder) Remote(origin, module string) *Builder {
	b.err.Origin = origin
	b.err.Module = module
	return b
}

// Export sets the export name
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Property sets the property name
func (b *Builder) Property(name string) *Builder {
	b.err.Property = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the bridge taxonomy

// RemoteLoad creates a remote load error. Remote load errors are never cached
// and the failed load may be retried.
func RemoteLoad(phase Phase, origin, module string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRemoteLoad,
		Origin: origin,
		Module: module,
		Detail: "load remote module",
		Cause:  cause,
	}
}

// ExportNotFound creates an error for a namespace lacking the requested export
func ExportNotFound(origin, module, export string) *Error {
	return &Error{
		Phase:  PhaseMount,
		Kind:   KindExportNotFound,
		Origin: origin,
		Module: module,
		Export: export,
		Detail: fmt.Sprintf("export %q not found", export),
	}
}

// PropertyProjection creates an error for a single failed property write or read
func PropertyProjection(phase Phase, export, property string, cause error) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindPropertyProjection,
		Export:   export,
		Property: property,
		Cause:    cause,
	}
}

// Cancelled creates an error for a load that was superseded or torn down
func Cancelled(origin, module, detail string) *Error {
	return &Error{
		Phase:  PhaseLifecycle,
		Kind:   KindCancelled,
		Origin: origin,
		Module: module,
		Detail: detail,
	}
}

// Panic converts a recovered panic value into an error
func Panic(phase Phase, v any) *Error {
	if err, ok := v.(error); ok {
		return &Error{Phase: phase, Kind: KindInvalidData, Detail: "panic", Cause: err}
	}
	return &Error{Phase: phase, Kind: KindInvalidData, Detail: fmt.Sprintf("panic: %v", v), Value: v}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Instantiation creates an instantiation error
func Instantiation(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseMount,
		Kind:   KindInstantiation,
		Export: export,
		Detail: "instantiate component",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsRemoteLoad reports whether err is or wraps a remote load error
func IsRemoteLoad(err error) bool {
	return stderrors.Is(err, ErrRemoteLoad)
}

// IsExportNotFound reports whether err is or wraps an export-not-found error
func IsExportNotFound(err error) bool {
	return stderrors.Is(err, ErrExportNotFound)
}

// IsPropertyProjection reports whether err is or wraps a projection error
func IsPropertyProjection(err error) bool {
	return stderrors.Is(err, ErrPropertyProjection)
}

// IsCancelled reports whether err is or wraps a cancelled load
func IsCancelled(err error) bool {
	return stderrors.Is(err, ErrCancelled)
}

// ProjectionErrors collects per-key projection failures of a single pass.
type ProjectionErrors struct {
	Errors []*Error
}

// Add appends a failure.
func (e *ProjectionErrors) Add(err *Error) {
	e.Errors = append(e.Errors, err)
}

// Err returns nil when no failures were collected.
func (e *ProjectionErrors) Err() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *ProjectionErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d properties failed to project:\n", len(e.Errors)))
	for _, err := range e.Errors {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Unwrap exposes the individual failures to errors.Is/As.
func (e *ProjectionErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}
