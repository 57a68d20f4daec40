// Package script evaluates Go-source remote bundles with the yaegi
// interpreter.
//
// A bundle is a single Go file. Every exported top-level function named
// NewX with no receiver declares the export X; the function is the
// component constructor and may take a context.Context and return an
// error as a second result.
//
// Interpreted components are driven through their exported struct fields
// (see contract.Adapt); outputs are fields of type *reactive.Event. Methods
// of interpreted types are invisible to reflection, so a component that
// wants SetProperty, Refresh and Destroy called must be returned by its
// constructor as contract.RemoteComponentContract.
//
// The interpreter only sees the Go standard library and the bridge's
// reactive and contract packages. A manifest may narrow this further by
// listing the permitted import paths.
package script
