package remote

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		modules []string
	}{
		{
			name: "yaml",
			doc: `
name: contacts
exposes:
  ./Widget:
    format: wasm
    path: widget.wasm
    exports:
      Widget:
        inputs: {title: string, count: s32}
        outputs: [changed]
  ./Card:
    format: go
    path: card.go
`,
			modules: []string{"./Card", "./Widget"},
		},
		{
			name:    "json",
			doc:     `{"name":"contacts","exposes":{"./Local":{"format":"local"}}}`,
			modules: []string{"./Local"},
		},
		{name: "empty", doc: `name: x`, wantErr: true},
		{name: "missing path", doc: "exposes:\n  ./W:\n    format: wasm\n", wantErr: true},
		{name: "unknown format", doc: "exposes:\n  ./W:\n    format: jar\n    path: w.jar\n", wantErr: true},
		{name: "not yaml", doc: "exposes: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.doc))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseManifest: %v", err)
			}
			if diff := cmp.Diff(tt.modules, m.ModuleNames()); diff != "" {
				t.Errorf("modules mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManifest_ModuleLookup(t *testing.T) {
	m, err := ParseManifest([]byte(`
exposes:
  ./Widget:
    format: wasm
    path: widget.wasm
    exports:
      Widget:
        outputs: [changed]
`))
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"./Widget", "Widget"} {
		e, ok := m.Module(name)
		if !ok {
			t.Fatalf("Module(%q) not found", name)
		}
		if e.Format != FormatWASM || e.Path != "widget.wasm" {
			t.Errorf("Module(%q) = %+v", name, e)
		}
		if got := e.Exports["Widget"].Outputs; len(got) != 1 || got[0] != "changed" {
			t.Errorf("outputs = %v", got)
		}
	}
	if _, ok := m.Module("./Missing"); ok {
		t.Error("unexpected module")
	}
}

func TestResolveRef(t *testing.T) {
	tests := []struct {
		origin, ref, want string
	}{
		{"https://x/remoteEntry.js", "widget.wasm", "https://x/widget.wasm"},
		{"https://x/app/remoteEntry.yaml", "./bundles/w.wasm", "https://x/app/bundles/w.wasm"},
		{"https://x/app/remoteEntry.yaml", "https://cdn/w.wasm", "https://cdn/w.wasm"},
		{"file:///srv/remote/entry.yaml", "w.go", "file:///srv/remote/w.go"},
	}
	for _, tt := range tests {
		got, err := ResolveRef(tt.origin, tt.ref)
		if err != nil {
			t.Fatalf("ResolveRef(%q, %q): %v", tt.origin, tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("ResolveRef(%q, %q) = %q, want %q", tt.origin, tt.ref, got, tt.want)
		}
	}
}

func TestSpec(t *testing.T) {
	s := Spec{Origin: "https://x/remoteEntry.js", Module: "./Widget", Export: "Widget"}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if s.String() != "https://x/remoteEntry.js#./Widget/Widget" {
		t.Errorf("String() = %q", s.String())
	}
	if s.Key() != (Key{Origin: "https://x/remoteEntry.js", Module: "./Widget"}) {
		t.Errorf("Key() = %+v", s.Key())
	}
	for _, bad := range []Spec{{}, {Origin: "o"}, {Origin: "o", Module: "m"}} {
		if bad.Validate() == nil {
			t.Errorf("Validate(%+v) should fail", bad)
		}
	}
}
