// Package errors provides structured error types for the remote component bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the remote coordinates (origin, module, export), the
// property being projected, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseProject, errors.KindPropertyProjection).
//		Export("Widget").
//		Property("count").
//		Detail("setter panicked").
//		Build()
//
// Or use convenience constructors for the bridge taxonomy:
//
//	err := errors.RemoteLoad(errors.PhaseFetch, origin, module, cause)
//	err := errors.ExportNotFound(origin, module, "Widget")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
