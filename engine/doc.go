// Package engine evaluates WebAssembly remote bundles with wazero.
//
// A bundle is a core WebAssembly module that follows the bridge guest ABI.
// The engine compiles it, instantiates it once per session, and exposes
// every component it declares as a contract.Factory.
//
// # Architecture
//
//	Engine       - owns the wazero runtime and the "bridge" host module
//	GuestModule  - one instantiated bundle; serializes guest calls
//	Instance     - one live component inside a GuestModule, addressed
//	               by the handle the guest returned from X_new
//
// # Guest ABI
//
// Host imports (module "bridge"):
//
//	emit(handle, name_ptr, name_len, payload_ptr, payload_len)
//
// Guest exports:
//
//	memory                                   linear memory
//	bridge_alloc(size) -> ptr                host-to-guest buffers
//	X_new() -> handle                        required; declares export X
//	X_set(handle, key_ptr, key_len, val_ptr, val_len)
//	X_refresh(handle)                        optional
//	X_destroy(handle)                        optional
//	X_outputs() -> i64                       optional; ptr<<32 | len of a
//	                                         msgpack array of emitter names
//
// All i32 unless noted. Property values and event payloads are msgpack.
//
// # Emission Ordering
//
// Events the guest emits while the host is calling into it are queued and
// delivered after the call returns, outside the module lock. A subscriber
// may therefore call back into the same instance from its handler.
//
// # Thread Safety
//
// Engine and GuestModule are safe for concurrent use. Calls into one
// GuestModule are serialized.
package engine
