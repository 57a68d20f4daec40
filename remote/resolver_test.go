package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
)

const testManifest = `
name: contacts
exposes:
  ./Widget:
    format: go
    path: widget.src
    exports:
      Widget:
        outputs: [changed]
  ./Broken:
    format: go
    path: broken.src
  ./Wasm:
    format: wasm
    path: w.wasm
`

// remoteServer serves testManifest and counts requests per path.
type remoteServer struct {
	*httptest.Server
	hits    sync.Map
	gate    chan struct{}
	failing atomic.Bool
}

func newRemoteServer(t *testing.T) *remoteServer {
	t.Helper()
	rs := &remoteServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := rs.hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)

		if rs.gate != nil {
			<-rs.gate
		}

		switch r.URL.Path {
		case "/remoteEntry.yaml":
			w.Write([]byte(testManifest))
		case "/widget.src":
			if rs.failing.Load() {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("widget"))
		case "/broken.src":
			w.Write([]byte("broken"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *remoteServer) count(path string) int32 {
	n, ok := rs.hits.Load(path)
	if !ok {
		return 0
	}
	return n.(*atomic.Int32).Load()
}

func (rs *remoteServer) origin() string {
	return rs.URL + "/remoteEntry.yaml"
}

type widget struct{ Title string }

// fakeEvaluator builds a namespace from the artifact text.
func fakeEvaluator(evals *atomic.Int32) Evaluator {
	return EvaluatorFunc(func(_ context.Context, b *Bundle) (contract.Namespace, error) {
		evals.Add(1)
		if string(b.Source) == "broken" {
			return nil, errors.InvalidData(errors.PhaseEvaluate, "syntax error")
		}
		ns := contract.Namespace{
			"Widget": contract.FactoryFunc(func(context.Context) (any, error) { return &widget{}, nil }),
		}
		return DeclareAll(ns, b), nil
	})
}

func TestResolver_ConcurrentDedup(t *testing.T) {
	rs := newRemoteServer(t)
	rs.gate = make(chan struct{})

	var evals atomic.Int32
	r := NewResolver(WithEvaluator(FormatGo, fakeEvaluator(&evals)))
	defer r.Close(context.Background())

	spec := Spec{Origin: rs.origin(), Module: "./Widget", Export: "Widget"}

	const n = 16
	results := make([]contract.Namespace, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), spec)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(rs.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Resolve[%d]: %v", i, errs[i])
		}
		if reflect.ValueOf(results[i]).Pointer() != reflect.ValueOf(results[0]).Pointer() {
			t.Errorf("Resolve[%d] returned a different namespace", i)
		}
	}

	if got := rs.count("/remoteEntry.yaml"); got != 1 {
		t.Errorf("manifest fetched %d times, want 1", got)
	}
	if got := rs.count("/widget.src"); got != 1 {
		t.Errorf("artifact fetched %d times, want 1", got)
	}
	if got := evals.Load(); got != 1 {
		t.Errorf("evaluated %d times, want 1", got)
	}

	// Subsequent resolutions hit the cache.
	if _, err := r.Resolve(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	if got := rs.count("/widget.src"); got != 1 {
		t.Errorf("cached resolve fetched again: %d", got)
	}

	f, ok := results[0].Lookup("Widget")
	if !ok {
		t.Fatal("Widget export missing")
	}
	d, ok := contract.DeclarationOf(f)
	if !ok || !d.AllowsOutput("changed") || d.AllowsOutput("other") {
		t.Errorf("manifest declaration not attached: %+v %v", d, ok)
	}
}

func TestResolver_FailureNotCached(t *testing.T) {
	rs := newRemoteServer(t)
	rs.failing.Store(true)

	var evals atomic.Int32
	r := NewResolver(WithEvaluator(FormatGo, fakeEvaluator(&evals)))
	spec := Spec{Origin: rs.origin(), Module: "./Widget", Export: "Widget"}

	_, err := r.Resolve(context.Background(), spec)
	if !errors.IsRemoteLoad(err) {
		t.Fatalf("expected remote load error, got %v", err)
	}
	if r.Cache().Len() != 0 {
		t.Fatal("failed load was cached")
	}

	rs.failing.Store(false)
	ns, err := r.Resolve(context.Background(), spec)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, ok := ns.Lookup("Widget"); !ok {
		t.Error("Widget missing after retry")
	}
	if got := rs.count("/widget.src"); got != 2 {
		t.Errorf("artifact fetched %d times, want 2", got)
	}
	if got := rs.count("/remoteEntry.yaml"); got != 1 {
		t.Errorf("manifest fetched %d times, want 1", got)
	}
}

func TestResolver_Errors(t *testing.T) {
	rs := newRemoteServer(t)

	var evals atomic.Int32
	r := NewResolver(WithEvaluator(FormatGo, fakeEvaluator(&evals)))

	tests := []struct {
		name  string
		spec  Spec
		phase errors.Phase
	}{
		{"unknown module", Spec{Origin: rs.origin(), Module: "./Nope", Export: "X"}, errors.PhaseResolve},
		{"evaluation failure", Spec{Origin: rs.origin(), Module: "./Broken", Export: "X"}, errors.PhaseEvaluate},
		{"no evaluator", Spec{Origin: rs.origin(), Module: "./Wasm", Export: "X"}, errors.PhaseEvaluate},
		{"missing manifest", Spec{Origin: rs.URL + "/missing.yaml", Module: "./Widget", Export: "X"}, errors.PhaseFetch},
		{"empty origin", Spec{Module: "./Widget", Export: "X"}, errors.PhaseResolve},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.spec)
			if !errors.IsRemoteLoad(err) {
				t.Fatalf("expected remote load error, got %v", err)
			}
			var be *errors.Error
			if !asError(err, &be) || be.Phase != tt.phase {
				t.Errorf("phase = %v, want %v (%v)", be, tt.phase, err)
			}
		})
	}
	if r.Cache().Len() != 0 {
		t.Errorf("cache has %d entries after failures", r.Cache().Len())
	}
}

func asError(err error, target **errors.Error) bool {
	be, ok := err.(*errors.Error)
	if ok {
		*target = be
	}
	return ok
}

func TestResolver_CancelledWaiterDoesNotPoisonLoad(t *testing.T) {
	rs := newRemoteServer(t)
	rs.gate = make(chan struct{})

	var evals atomic.Int32
	r := NewResolver(WithEvaluator(FormatGo, fakeEvaluator(&evals)))
	spec := Spec{Origin: rs.origin(), Module: "./Widget", Export: "Widget"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, spec)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.IsRemoteLoad(err) {
		t.Fatalf("cancelled waiter: %v", err)
	}

	close(rs.gate)
	if _, err := r.Resolve(context.Background(), spec); err != nil {
		t.Fatalf("resolve after cancelled waiter: %v", err)
	}
	if got := evals.Load(); got != 1 {
		t.Errorf("evaluated %d times, want 1", got)
	}
}

func TestResolver_DefaultOriginAndAliases(t *testing.T) {
	rs := newRemoteServer(t)

	var evals atomic.Int32
	r := NewResolver(
		WithEvaluator(FormatGo, fakeEvaluator(&evals)),
		WithDefaultOrigin(rs.origin()),
		WithAliases(map[string]string{"contacts": rs.origin()}),
	)

	a, err := r.Resolve(context.Background(), Spec{Module: "./Widget", Export: "Widget"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Resolve(context.Background(), Spec{Origin: "contacts", Module: "./Widget", Export: "Widget"})
	if err != nil {
		t.Fatal(err)
	}
	if reflect.ValueOf(a).Pointer() != reflect.ValueOf(b).Pointer() {
		t.Error("alias and default origin should share a cache entry")
	}
	if r.Normalize(Spec{Origin: "contacts"}).Origin != rs.origin() {
		t.Error("alias not normalized")
	}
}

func TestResolver_Local(t *testing.T) {
	fetches := 0
	r := NewResolver(WithFetcher(FetcherFunc(func(context.Context, string) ([]byte, error) {
		fetches++
		return nil, errors.InvalidInput(errors.PhaseFetch, "offline")
	})))

	ns := contract.Namespace{
		"Card": contract.FactoryFunc(func(context.Context) (any, error) { return &widget{}, nil }),
	}
	r.RegisterLocal("host", "./Card", ns)

	got, err := r.Resolve(context.Background(), Spec{Origin: "host", Module: "./Card", Export: "Card"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Lookup("Card"); !ok {
		t.Error("Card missing")
	}
	if fetches != 0 {
		t.Errorf("local resolve fetched %d times", fetches)
	}
}

func TestResolver_PreloadAndClose(t *testing.T) {
	rs := newRemoteServer(t)

	var evals atomic.Int32
	r := NewResolver(WithEvaluator(FormatGo, fakeEvaluator(&evals)))

	err := r.Preload(context.Background(),
		Spec{Origin: rs.origin(), Module: "./Widget", Export: "Widget"},
		Spec{Origin: rs.origin(), Module: "Widget", Export: "Widget"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if r.Cache().Len() != 2 {
		t.Errorf("cache len = %d, want 2", r.Cache().Len())
	}

	if err := r.Preload(context.Background(), Spec{Origin: rs.origin(), Module: "./Broken", Export: "X"}); err == nil {
		t.Error("Preload should report failures")
	}

	if err := r.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.Cache().Len() != 0 {
		t.Error("Close did not clear the cache")
	}
}

func TestResolver_AmbiguousKeysLoadSeparately(t *testing.T) {
	a := Key{Origin: "https://x/a#b", Module: "c"}
	b := Key{Origin: "https://x/a", Module: "b#c"}
	if a.flightKey() == b.flightKey() {
		t.Fatalf("flight keys collide: %q", a.flightKey())
	}

	manifests := map[string]string{
		a.Origin: "exposes:\n  c:\n    format: go\n    path: c.src\n",
		b.Origin: "exposes:\n  \"b#c\":\n    format: go\n    path: bc.src\n",
	}
	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	fetcher := FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		if m, ok := manifests[url]; ok {
			return []byte(m), nil
		}
		entered <- struct{}{}
		<-gate
		return []byte(url), nil
	})
	ev := EvaluatorFunc(func(_ context.Context, bd *Bundle) (contract.Namespace, error) {
		return contract.Namespace{
			bd.Key.Module: contract.FactoryFunc(func(context.Context) (any, error) { return &widget{}, nil }),
		}, nil
	})
	r := NewResolver(WithFetcher(fetcher), WithEvaluator(FormatGo, ev))

	type result struct {
		ns  contract.Namespace
		err error
	}
	results := make([]chan result, 2)
	for i, k := range []Key{a, b} {
		results[i] = make(chan result, 1)
		go func() {
			ns, err := r.Resolve(context.Background(), Spec{Origin: k.Origin, Module: k.Module})
			results[i] <- result{ns, err}
		}()
	}

	// Both loads must be in flight at once; a shared load would enter once.
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			close(gate)
			t.Fatalf("only %d artifact fetches started", i)
		}
	}
	close(gate)

	for i, k := range []Key{a, b} {
		res := <-results[i]
		if res.err != nil {
			t.Fatalf("Resolve(%v): %v", k, res.err)
		}
		if _, ok := res.ns.Lookup(k.Module); !ok || len(res.ns) != 1 {
			t.Errorf("Resolve(%v) got namespace %v", k, res.ns.Names())
		}
	}
}
