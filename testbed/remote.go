package testbed

import (
	_ "embed"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/internal/wasmenc"
)

// EntryPath is the path of the remote entry manifest.
const EntryPath = "/remoteEntry.yaml"

//go:embed bundles/card.go.txt
var cardSource []byte

const manifest = `name: bridge-demo
exposes:
  ./Widget:
    format: wasm
    path: widget.wasm
    exports:
      Widget:
        inputs:
          title: string
          count: s32
        outputs: [title, count, refresh]
  ./Card:
    format: go
    path: card.go
    imports: [fmt, strings]
    exports:
      Card:
        outputs: [changed]
`

type asset struct {
	contentType string
	body        []byte
}

// Remote is an http.Handler serving the demo remote.
type Remote struct {
	logger *zap.Logger
	assets map[string]asset
	hits   map[string]int
	mu     sync.Mutex
}

// NewRemote assembles the demo bundles. A nil logger disables request
// logging.
func NewRemote(l *zap.Logger) (*Remote, error) {
	if l == nil {
		l = zap.NewNop()
	}
	widget, err := wasmenc.Guest(wasmenc.Component{
		Name:    "Widget",
		Outputs: []string{"title", "count", "refresh"},
		Refresh: true,
		Destroy: true,
	})
	if err != nil {
		return nil, err
	}
	return &Remote{
		logger: l,
		hits:   make(map[string]int),
		assets: map[string]asset{
			EntryPath:      {contentType: "application/yaml", body: []byte(manifest)},
			"/widget.wasm": {contentType: "application/wasm", body: widget},
			"/card.go":     {contentType: "text/x-go", body: cardSource},
		},
	}, nil
}

// ServeHTTP implements http.Handler.
func (r *Remote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a, ok := r.assets[req.URL.Path]
	if !ok {
		r.logger.Debug("not found", zap.String("path", req.URL.Path))
		http.NotFound(w, req)
		return
	}

	r.mu.Lock()
	r.hits[req.URL.Path]++
	r.mu.Unlock()

	r.logger.Info("serve", zap.String("path", req.URL.Path), zap.Int("bytes", len(a.body)))
	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.body)))
	if req.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(a.body)
}

// Hits returns how often path was served.
func (r *Remote) Hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

// Paths returns the served paths.
func (r *Remote) Paths() []string {
	paths := make([]string, 0, len(r.assets))
	for p := range r.assets {
		paths = append(paths, p)
	}
	return paths
}
