// Package mfebridge loads UI components published by remote bundles at
// runtime and mounts them into a host.
//
// A remote publishes a manifest (the remote entry) naming its exposed
// modules. Each module is an artifact in one of three formats: a core
// WebAssembly module speaking the bridge guest ABI, Go source run by an
// interpreter, or a namespace registered in-process. A component is
// addressed by a spec of origin, module and export.
//
// # Architecture Overview
//
//	mfebridge/
//	├── bridge/      Controller, mount points, input projection, output relay
//	├── remote/      Manifest fetch, module cache and load deduplication
//	├── contract/    The component contract and the reflective struct adapter
//	├── reactive/    Cells, emitters and subscriptions
//	├── engine/      wazero host for wasm guest modules
//	├── script/      yaegi evaluator for Go source modules
//	├── config/      YAML configuration, environment overrides, file watching
//	├── errors/      Structured error types
//	├── testbed/     Demo remote and end-to-end tests
//	└── cmd/bridge/  Command line interface
//
// # Quick Start
//
//	res := remote.NewResolver(
//	    remote.WithEvaluator(remote.FormatWASM, eng),
//	    remote.WithEvaluator(remote.FormatGo, script.New()),
//	)
//	defer res.Close(ctx)
//
//	ctrl := bridge.NewController(res, bridge.NewMountPoint("sidebar"))
//	ctrl.Outputs().Subscribe(func(ev bridge.OutputEvent) {
//	    fmt.Println(ev.Property, ev.Payload)
//	})
//
//	title := reactive.NewCell("Hello")
//	spec := remote.Spec{Origin: "https://cdn.example.com/remoteEntry.yaml", Module: "./Widget", Export: "Widget"}
//	if err := ctrl.Attach(ctx, spec, bridge.Inputs{"title": title}); err != nil {
//	    log.Fatal(err)
//	}
//	title.Set("World") // re-projected without remounting
//
// # Lifecycle
//
// A mount point holds at most one live instance. Changing the spec destroys
// the current instance before the next one is created; detaching cancels
// any load still in flight. Failures are published on the controller's
// failure stream and leave the controller ready for another attempt.
//
// # Thread Safety
//
// Resolver, Controller and reactive cells are safe for concurrent use.
// Subscribers run synchronously on the goroutine that emitted.
package mfebridge
