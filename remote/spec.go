package remote

import (
	"github.com/wippyai/mfe-bridge/errors"
)

// Spec identifies a loadable component: the remote entry URL, the exposed
// module inside it, and the export inside that module.
type Spec struct {
	Origin string `yaml:"origin" json:"origin"`
	Module string `yaml:"module" json:"module"`
	Export string `yaml:"export" json:"export"`
}

// Key returns the cache key of the module the spec points at.
func (s Spec) Key() Key {
	return Key{Origin: s.Origin, Module: s.Module}
}

func (s Spec) String() string {
	return s.Origin + "#" + s.Module + "/" + s.Export
}

// Validate checks that all three coordinates are present.
func (s Spec) Validate() error {
	switch {
	case s.Origin == "":
		return errors.InvalidInput(errors.PhaseResolve, "spec origin is empty")
	case s.Module == "":
		return errors.InvalidInput(errors.PhaseResolve, "spec module is empty")
	case s.Export == "":
		return errors.InvalidInput(errors.PhaseResolve, "spec export is empty")
	}
	return nil
}

// Key identifies a module namespace in the cache.
type Key struct {
	Origin string
	Module string
}

func (k Key) String() string {
	return k.Origin + "#" + k.Module
}

// flightKey is the unambiguous in-flight load key. NUL cannot occur in a
// URL or a module name taken from a manifest key.
func (k Key) flightKey() string {
	return k.Origin + "\x00" + k.Module
}
