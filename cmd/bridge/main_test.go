package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/bridge"
	"github.com/wippyai/mfe-bridge/config"
	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/remote"
	"github.com/wippyai/mfe-bridge/testbed"
)

func TestParseInputs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"scalars", []string{"title=Hello", "count=5", "on=true", "ratio=0.5"},
			map[string]any{"title": "Hello", "count": 5, "on": true, "ratio": 0.5}, false},
		{"empty value", []string{"title="}, map[string]any{"title": ""}, false},
		{"value with equals", []string{"q=a=b"}, map[string]any{"q": "a=b"}, false},
		{"collections stay text", []string{"list=[1, 2]"}, map[string]any{"list": "[1, 2]"}, false},
		{"missing equals", []string{"title"}, nil, true},
		{"empty key", []string{"=x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(tt.pairs)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
					t.Errorf("error kind: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInputs: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("inputs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMountOptionsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mount.Spec = remote.Spec{Origin: "shell", Module: "./Widget", Export: "Widget"}
	cfg.Mount.Inputs = map[string]any{"title": "from config", "count": 1}

	o := &mountOptions{export: "Other", inputs: []string{"count=7"}}
	if got, want := o.spec(cfg), (remote.Spec{Origin: "shell", Module: "./Widget", Export: "Other"}); got != want {
		t.Errorf("spec = %v, want %v", got, want)
	}
	values, err := o.values(cfg)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"title": "from config", "count": 7}, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func newDemoServer(t *testing.T) string {
	t.Helper()
	rem, err := testbed.NewRemote(nil)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	srv := httptest.NewServer(rem)
	t.Cleanup(srv.Close)
	return srv.URL + testbed.EntryPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestInspectListsDemoRemote(t *testing.T) {
	origin := newDemoServer(t)

	out, err := execute(t, "inspect", "--origin", origin)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"./Widget", "wasm", "widget.wasm",
		"inputs: count:s32, title:string", "outputs: title, count, refresh",
		"./Card", "go", "card.go", "outputs: changed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "error") {
		t.Errorf("module failed to load:\n%s", out)
	}
}

func TestMountOnce(t *testing.T) {
	origin := newDemoServer(t)

	_, err := execute(t, "mount", "--once",
		"--origin", origin, "--module", "./Widget", "--export", "Widget",
		"--input", "title=Hello", "--input", "count=5")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}

	_, err = execute(t, "mount", "--once",
		"--origin", origin, "--module", "./Widget", "--export", "Missing")
	if !errors.IsExportNotFound(err) {
		t.Errorf("missing export: %v", err)
	}

	_, err = execute(t, "mount", "--once", "--origin", origin, "--module", "./Widget")
	if err == nil {
		t.Error("mount without export succeeded")
	}
}

func TestInteractiveRequiresTerminal(t *testing.T) {
	_, err := execute(t, "mount", "-i", "--origin", "http://unused", "--module", "./Widget", "--export", "Widget")
	if err == nil {
		t.Skip("stdin and stdout are a terminal")
	}
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindUnsupported}) {
		t.Errorf("error = %v", err)
	}
}

type label struct {
	Text string
}

func TestRemountFromReloadedConfig(t *testing.T) {
	ctx := context.Background()
	res := remote.NewResolver()
	factory := contract.FactoryFunc(func(context.Context) (any, error) { return &label{}, nil })
	res.RegisterLocal("local", "./Labels", contract.Namespace{"Label": factory, "Caption": factory})
	defer res.Close(ctx)

	ctrl := bridge.NewController(res, nil)
	spec := remote.Spec{Origin: "local", Module: "./Labels", Export: "Label"}
	if err := ctrl.Attach(ctx, spec, bridge.Inputs{"text": "a"}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer ctrl.Detach()
	first := ctrl.Instance()
	o := &mountOptions{}

	// A config with no mount section, as seen mid-save, keeps the instance.
	remount(ctx, zap.NewNop(), res, ctrl, o, config.Default())
	if ctrl.Instance() != first || first.Destroyed() {
		t.Fatal("incomplete config tore down the mount")
	}

	cfg := config.Default()
	cfg.Mount.Spec = spec
	cfg.Mount.Inputs = map[string]any{"text": "b"}
	remount(ctx, zap.NewNop(), res, ctrl, o, cfg)
	if ctrl.Instance() != first {
		t.Fatal("unchanged spec remounted")
	}
	if v, _ := first.Property("text"); v != "b" {
		t.Errorf("text = %v, want b", v)
	}

	cfg.Mount.Spec.Export = "Caption"
	cfg.Mount.Inputs = map[string]any{"text": "c"}
	remount(ctx, zap.NewNop(), res, ctrl, o, cfg)
	next := ctrl.Instance()
	if next == nil || next == first || !first.Destroyed() {
		t.Fatal("changed spec did not remount")
	}
	if next.Export() != "Caption" {
		t.Errorf("export = %q, want Caption", next.Export())
	}
	if v, _ := next.Property("text"); v != "c" {
		t.Errorf("text = %v, want c", v)
	}
}
