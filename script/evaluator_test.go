package script

import (
	"context"
	"testing"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
	"github.com/wippyai/mfe-bridge/remote"
)

const cardSource = `package widgets

import (
	"context"
	"errors"
	"strings"

	"github.com/wippyai/mfe-bridge/reactive"
)

type Card struct {
	Title   string
	Count   int             ` + "`prop:\"count\"`" + `
	Changed *reactive.Event ` + "`prop:\"changed\"`" + `
}

func NewCard() *Card {
	return &Card{Title: strings.ToUpper("untitled"), Changed: reactive.NewEvent()}
}

func NewBanner(ctx context.Context) (*Card, error) {
	if ctx == nil {
		return nil, errors.New("no context")
	}
	return &Card{Title: "banner"}, nil
}

func NewBroken() (*Card, error) {
	return nil, errors.New("broken on purpose")
}

func Newline() {}

func helper() int { return 1 }
`

func bundle(src string, imports ...string) *remote.Bundle {
	return &remote.Bundle{
		Key:     remote.Key{Origin: "http://remote", Module: "./Widgets"},
		URL:     "http://remote/widgets.go",
		Exposed: remote.Exposed{Format: remote.FormatGo, Path: "widgets.go", Imports: imports},
		Source:  []byte(src),
	}
}

func TestEvaluateEnumeratesConstructors(t *testing.T) {
	ns, err := New().Evaluate(context.Background(), bundle(cardSource))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	names := ns.Names()
	want := []string{"Banner", "Broken", "Card"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestInterpretedComponentThroughAdapter(t *testing.T) {
	ctx := context.Background()
	ns, err := New().Evaluate(ctx, bundle(cardSource))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	f, ok := ns.Lookup("Card")
	if !ok {
		t.Fatal("Card not exported")
	}
	v, err := f.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := contract.Adapt(v)
	if got, _ := c.Get("title"); got != "UNTITLED" {
		t.Errorf("initial title = %v, want UNTITLED", got)
	}
	if err := c.Set("title", "hello"); err != nil {
		t.Fatalf("Set(title): %v", err)
	}
	if got, _ := c.Get("title"); got != "hello" {
		t.Errorf("title = %v, want hello", got)
	}
	if err := c.Set("count", 3); err != nil {
		t.Fatalf("Set(count): %v", err)
	}
	if got, _ := c.Get("count"); got != 3 {
		t.Errorf("count = %v, want 3", got)
	}

	outs, err := c.Outputs()
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	src, ok := outs["changed"]
	if !ok {
		t.Fatalf("outputs = %v, want changed", contract.OutputNames(outs))
	}
	var got any
	sub := src.SubscribeAny(func(v any) { got = v })
	defer sub.Unsubscribe()
	src.(*reactive.Event).Emit("ping")
	if got != "ping" {
		t.Errorf("event = %v, want ping", got)
	}
}

func TestConstructorVariants(t *testing.T) {
	ctx := context.Background()
	ns, err := New().Evaluate(ctx, bundle(cardSource))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	banner, _ := ns.Lookup("Banner")
	v, err := banner.New(ctx)
	if err != nil {
		t.Fatalf("Banner: %v", err)
	}
	if got, _ := contract.Adapt(v).Get("title"); got != "banner" {
		t.Errorf("banner title = %v", got)
	}

	broken, _ := ns.Lookup("Broken")
	if _, err := broken.New(ctx); err == nil {
		t.Error("expected constructor error")
	}
}

func TestEvaluateAttachesDeclarations(t *testing.T) {
	b := bundle(cardSource)
	b.Exposed.Exports = map[string]contract.Declaration{"Card": {Outputs: []string{"changed"}}}
	ns, err := New().Evaluate(context.Background(), b)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	f, _ := ns.Lookup("Card")
	d, ok := contract.DeclarationOf(f)
	if !ok || len(d.Outputs) != 1 {
		t.Errorf("declaration = %+v, %v", d, ok)
	}
}

func TestEvaluateFailures(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		imports []string
		kind    errors.Kind
	}{
		{name: "syntax", src: "package w\nfunc (", kind: errors.KindInvalidData},
		{name: "main package", src: "package main\nfunc main() {}", kind: errors.KindInvalidData},
		{
			name: "unavailable import",
			src:  "package w\nimport _ \"example.com/private/pkg\"\n",
			kind: errors.KindUnsupported,
		},
		{
			name:    "import outside allow-list",
			src:     "package w\nimport \"os\"\nvar _ = os.Getenv\n",
			imports: []string{"strings"},
			kind:    errors.KindUnsupported,
		},
		{name: "type error", src: "package w\nfunc NewX() int { return \"s\" }\n", kind: errors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Evaluate(context.Background(), bundle(tt.src, tt.imports...))
			if err == nil {
				t.Fatal("expected error")
			}
			be, ok := err.(*errors.Error)
			if !ok {
				t.Fatalf("error type = %T", err)
			}
			if be.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", be.Kind, tt.kind, err)
			}
		})
	}
}

func TestAllowListPermitsReactive(t *testing.T) {
	src := `package w

import (
	"strings"

	"github.com/wippyai/mfe-bridge/reactive"
)

type Box struct {
	Label string
	Done  *reactive.Event
}

func NewBox() *Box { return &Box{Label: strings.TrimSpace(" box "), Done: reactive.NewEvent()} }
`
	ns, err := New().Evaluate(context.Background(), bundle(src, "strings"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, ok := ns.Lookup("Box"); !ok {
		t.Error("Box not exported")
	}
}

func TestExportName(t *testing.T) {
	tests := []struct {
		fn   string
		want string
		ok   bool
	}{
		{"NewCard", "Card", true},
		{"New", "", false},
		{"Newline", "", false},
		{"newCard", "", false},
		{"Card", "", false},
	}
	for _, tt := range tests {
		got, ok := exportName(tt.fn)
		if got != tt.want || ok != tt.ok {
			t.Errorf("exportName(%q) = %q, %v; want %q, %v", tt.fn, got, ok, tt.want, tt.ok)
		}
	}
}

const counterSource = `package counter

import (
	"fmt"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/reactive"
)

type Counter struct {
	props     map[string]any
	changed   *reactive.Event
	refreshes int
}

func NewCounter() contract.RemoteComponentContract {
	return &Counter{props: map[string]any{}, changed: reactive.NewEvent()}
}

func (c *Counter) SetProperty(name string, value any) error {
	if name == "fail" {
		return fmt.Errorf("refusing %v", value)
	}
	c.props[name] = value
	c.changed.Emit(name)
	return nil
}

func (c *Counter) Refresh() { c.refreshes++ }

func (c *Counter) Destroy() {}

func (c *Counter) Outputs() map[string]reactive.EventSource {
	return map[string]reactive.EventSource{"changed": c.changed}
}
`

func TestInterpretedContractMethods(t *testing.T) {
	ctx := context.Background()
	ns, err := New().Evaluate(ctx, bundle(counterSource))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	f, ok := ns.Lookup("Counter")
	if !ok {
		t.Fatal("Counter not exported")
	}
	v, err := f.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !contract.Satisfies(v) {
		t.Fatalf("%T does not satisfy the component contract", v)
	}

	c := contract.Adapt(v)
	outs, err := c.Outputs()
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	var got []any
	sub := outs["changed"].SubscribeAny(func(v any) { got = append(got, v) })
	defer sub.Unsubscribe()

	if err := c.Set("title", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set("fail", 1); err == nil {
		t.Error("expected SetProperty error")
	}
	if len(got) != 1 || got[0] != "title" {
		t.Errorf("changed events = %v, want [title]", got)
	}
	if err := c.Refresh(); err != nil {
		t.Errorf("Refresh: %v", err)
	}
	if err := c.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
}
