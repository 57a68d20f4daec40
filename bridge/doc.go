// Package bridge mounts remote components and wires them to host state.
//
// A Controller owns one MountPoint. Attach resolves a remote.Spec through a
// Resolver, mounts the named export, projects the host Inputs onto it and
// relays its emitters as OutputEvents, in that order:
//
//	resolve -> Mount -> Projector.Project -> Relay.Bind -> Mounted
//
// # Lifecycle
//
//	Unmounted --Attach--> Loading --ok--> Mounted --Detach--> Destroyed
//	              ^          |
//	              +--fail----+
//
// SetSpec destroys the current instance and loads the new spec. SetInputs
// re-projects without re-instantiating. Attach from Destroyed starts over
// with a new LiveInstance.
//
// # Cancellation
//
// Every MountPoint carries a generation counter. A load captures it at
// start; Detach and SetSpec advance it. A resolution that completes for a
// stale generation is discarded before anything is mounted.
//
// # Reactive Inputs
//
// Input values implementing reactive.Source are observed for the lifetime
// of the instance. Changes that arrive before the instance is started are
// held and applied, latest value per key, when it starts.
package bridge
