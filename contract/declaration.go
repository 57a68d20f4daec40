package contract

// Declaration is the optional shape a remote manifest declares for an
// export. Inputs maps property names to WIT type strings; Outputs, when
// non-empty, is the allow-list of emitter names relayed to the host.
type Declaration struct {
	Inputs  map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []string          `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// Declarer is implemented by factories that carry a Declaration.
type Declarer interface {
	Declaration() Declaration
}

type declaredFactory struct {
	Factory
	decl Declaration
}

func (d declaredFactory) Declaration() Declaration {
	return d.decl
}

// Declare attaches decl to f.
func Declare(f Factory, decl Declaration) Factory {
	return declaredFactory{Factory: f, decl: decl}
}

// DeclarationOf returns the declaration carried by f, if any.
func DeclarationOf(f Factory) (Declaration, bool) {
	d, ok := f.(Declarer)
	if !ok {
		return Declaration{}, false
	}
	return d.Declaration(), true
}

// AllowsOutput reports whether name passes the output allow-list.
// An empty list allows every output.
func (d Declaration) AllowsOutput(name string) bool {
	if len(d.Outputs) == 0 {
		return true
	}
	for _, o := range d.Outputs {
		if o == name {
			return true
		}
	}
	return false
}
