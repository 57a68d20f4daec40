// Package testbed serves a demo remote for the bridge CLI and for
// end-to-end tests.
//
// The remote exposes two modules:
//
//	./Widget  wasm  guest assembled at startup; echoes each input as an
//	                output of the same name and emits "refresh"
//	./Card    go    interpreted component emitting "changed" with its
//	                rendered line whenever it changes
package testbed
