// Package remote resolves remote component bundles into namespaces.
//
// A remote is addressed by an origin URL that serves a remote entry
// manifest. The manifest lists exposed modules, each with an artifact path
// and an evaluation format:
//
//	name: contact-management-mfe
//	exposes:
//	  ./Widget:
//	    format: wasm
//	    path: widget.wasm
//	    exports:
//	      Widget:
//	        inputs: {title: string, count: s32}
//	        outputs: [changed]
//
// Resolver fetches the manifest once per origin and each module artifact
// once per (origin, module) pair, hands the bytes to the Evaluator
// registered for the format, and caches the resulting namespace for the
// rest of the session. Concurrent first requests for the same pair share a
// single in-flight load. Failed loads are never cached.
//
//	r := remote.NewResolver(
//	    remote.WithEvaluator(remote.FormatWASM, wasmEvaluator),
//	)
//	defer r.Close(ctx)
//
//	ns, err := r.Resolve(ctx, remote.Spec{
//	    Origin: "https://cdn.example.com/contacts/remoteEntry.yaml",
//	    Module: "./Widget",
//	    Export: "Widget",
//	})
package remote
