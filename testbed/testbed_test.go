package testbed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/mfe-bridge/bridge"
	"github.com/wippyai/mfe-bridge/engine"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
	"github.com/wippyai/mfe-bridge/remote"
	"github.com/wippyai/mfe-bridge/script"
)

type session struct {
	remote   *Remote
	resolver *remote.Resolver
	origin   string
}

func newSession(t *testing.T) *session {
	t.Helper()
	ctx := context.Background()

	rem, err := NewRemote(nil)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	srv := httptest.NewServer(rem)
	t.Cleanup(srv.Close)

	eng, err := engine.New(ctx, &engine.Config{MemoryLimitPages: 16})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	res := remote.NewResolver(
		remote.WithFetcher(remote.NewHTTPFetcher(5*time.Second, 0)),
		remote.WithEvaluator(remote.FormatWASM, eng),
		remote.WithEvaluator(remote.FormatGo, script.New()),
	)
	t.Cleanup(func() {
		if err := res.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return &session{remote: rem, resolver: res, origin: srv.URL + EntryPath}
}

type eventLog struct {
	events []bridge.OutputEvent
	mu     sync.Mutex
}

func (l *eventLog) add(ev bridge.OutputEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) strings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, ev := range l.events {
		out[i] = fmt.Sprintf("%s=%v", ev.Property, ev.Payload)
	}
	return out
}

func TestWasmWidgetEndToEnd(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	c := bridge.NewController(s.resolver, bridge.NewMountPoint("widget"))
	var log eventLog
	sub := c.Outputs().Subscribe(log.add)
	defer sub.Unsubscribe()

	count := reactive.NewCell(0)
	spec := remote.Spec{Origin: s.origin, Module: "./Widget", Export: "Widget"}
	if err := c.Attach(ctx, spec, bridge.Inputs{"title": "Hello", "count": count}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	inst := c.Instance()
	if v, _ := inst.Property("title"); v != "Hello" {
		t.Errorf("title = %#v, want Hello", v)
	}
	if v, _ := inst.Property("count"); v != int32(0) {
		t.Errorf("count = %#v, want int32(0)", v)
	}

	count.Set(5)
	if v, _ := inst.Property("count"); v != int32(5) {
		t.Errorf("count = %#v, want int32(5)", v)
	}
	if c.Instance() != inst {
		t.Error("cell update remounted the widget")
	}

	got := log.strings()
	want := []string{"count=5", "refresh=<nil>"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	if n := s.remote.Hits(EntryPath); n != 1 {
		t.Errorf("manifest fetches = %d, want 1", n)
	}

	c.Detach()
	if count.Observers() != 0 {
		t.Errorf("observers after detach = %d", count.Observers())
	}
	count.Set(6)
	if n := len(log.strings()); n != 2 {
		t.Errorf("events after detach = %d, want 2", n)
	}
}

func TestGoCardEndToEnd(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	c := bridge.NewController(s.resolver, nil)
	var log eventLog
	sub := c.Outputs().Subscribe(log.add)
	defer sub.Unsubscribe()

	title := reactive.NewCell("hello")
	spec := remote.Spec{Origin: s.origin, Module: "./Card", Export: "Card"}
	if err := c.Attach(ctx, spec, bridge.Inputs{"title": title, "count": 1}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Detach()

	title.Set("world")
	if err := c.SetInputs(bridge.Inputs{"title": title, "count": 2}); err != nil {
		t.Fatalf("SetInputs: %v", err)
	}

	want := []string{"changed=[WORLD] 1", "changed=[WORLD] 2"}
	if got := log.strings(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestConcurrentMountsShareOneLoad(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	spec := remote.Spec{Origin: s.origin, Module: "./Widget", Export: "Widget"}

	const n = 8
	controllers := make([]*bridge.Controller, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range controllers {
		controllers[i] = bridge.NewController(s.resolver, bridge.NewMountPoint(fmt.Sprintf("p%d", i)))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = controllers[i].Attach(ctx, spec, bridge.Inputs{"title": i})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("controller %d: %v", i, err)
		}
	}
	if h := s.remote.Hits("/widget.wasm"); h != 1 {
		t.Errorf("artifact fetches = %d, want 1", h)
	}
	if h := s.remote.Hits(EntryPath); h != 1 {
		t.Errorf("manifest fetches = %d, want 1", h)
	}

	seen := make(map[string]bool)
	for i, c := range controllers {
		inst := c.Instance()
		if v, _ := inst.Property("title"); v != fmt.Sprint(i) {
			t.Errorf("controller %d title = %#v", i, v)
		}
		if seen[inst.ID()] {
			t.Errorf("instance %s shared between mount points", inst.ID())
		}
		seen[inst.ID()] = true
		c.Detach()
	}
}

func TestLoadFailures(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		spec  remote.Spec
		check func(error) bool
	}{
		{
			name:  "unknown module",
			spec:  remote.Spec{Origin: s.origin, Module: "./Missing", Export: "Widget"},
			check: errors.IsRemoteLoad,
		},
		{
			name:  "unknown export",
			spec:  remote.Spec{Origin: s.origin, Module: "./Widget", Export: "Gadget"},
			check: errors.IsExportNotFound,
		},
		{
			name:  "unreachable origin",
			spec:  remote.Spec{Origin: s.origin + ".missing", Module: "./Widget", Export: "Widget"},
			check: errors.IsRemoteLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := bridge.NewController(s.resolver, nil)
			err := c.Attach(ctx, tt.spec, nil)
			if !tt.check(err) {
				t.Fatalf("Attach error = %v", err)
			}
			if c.State() != bridge.StateUnmounted {
				t.Errorf("state = %s, want unmounted", c.State())
			}
		})
	}
}

func TestRemoteHandler(t *testing.T) {
	rem, err := NewRemote(nil)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, EntryPath, http.StatusOK},
		{http.MethodGet, "/widget.wasm", http.StatusOK},
		{http.MethodHead, "/card.go", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, EntryPath, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		rem.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.status)
		}
	}
	if rem.Hits(EntryPath) != 1 {
		t.Errorf("hits = %d, want 1", rem.Hits(EntryPath))
	}

	m, err := remote.ParseManifest([]byte(manifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if got := m.ModuleNames(); len(got) != 2 {
		t.Errorf("modules = %v", got)
	}
}
