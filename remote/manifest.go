package remote

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
)

// Format selects the evaluator for a module artifact.
type Format string

const (
	FormatWASM  Format = "wasm"  // WebAssembly core module, bridge guest ABI
	FormatGo    Format = "go"    // Go source interpreted at load time
	FormatLocal Format = "local" // namespace registered in-process
)

// Manifest is the remote entry document served at an origin.
type Manifest struct {
	Exposes map[string]Exposed `yaml:"exposes" json:"exposes"`
	Name    string             `yaml:"name" json:"name"`
}

// Exposed describes one module of a remote.
type Exposed struct {
	Exports map[string]contract.Declaration `yaml:"exports,omitempty" json:"exports,omitempty"`
	Format  Format                          `yaml:"format" json:"format"`
	Path    string                          `yaml:"path" json:"path"`
	Imports []string                        `yaml:"imports,omitempty" json:"imports,omitempty"`
}

// ParseManifest decodes a manifest. JSON documents are accepted as well.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "parse remote entry manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every exposed module.
func (m *Manifest) Validate() error {
	if len(m.Exposes) == 0 {
		return errors.InvalidData(errors.PhaseFetch, "manifest exposes no modules")
	}
	for name, e := range m.Exposes {
		switch e.Format {
		case FormatWASM, FormatGo:
			if e.Path == "" {
				return errors.New(errors.PhaseFetch, errors.KindInvalidData).
					Remote("", name).
					Detail("exposed module has no path").
					Build()
			}
		case FormatLocal:
		default:
			return errors.New(errors.PhaseFetch, errors.KindUnsupported).
				Remote("", name).
				Detail("unknown format %q", e.Format).
				Build()
		}
	}
	return nil
}

// Module returns the exposed module. "./Widget" and "Widget" name the same
// module.
func (m *Manifest) Module(name string) (Exposed, bool) {
	if e, ok := m.Exposes[name]; ok {
		return e, true
	}
	alt := "./" + name
	if strings.HasPrefix(name, "./") {
		alt = strings.TrimPrefix(name, "./")
	}
	e, ok := m.Exposes[alt]
	return e, ok
}

// ModuleNames returns the exposed module names in sorted order.
func (m *Manifest) ModuleNames() []string {
	names := make([]string, 0, len(m.Exposes))
	for name := range m.Exposes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
