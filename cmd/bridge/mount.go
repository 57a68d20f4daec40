package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/mfe-bridge/bridge"
	"github.com/wippyai/mfe-bridge/config"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/remote"
)

const mountExample = `  bridge mount --origin http://localhost:8089/remoteEntry.yaml --module ./Widget --export Widget --input title=Hello
  bridge mount -c bridge.yaml --watch`

type mountOptions struct {
	origin string
	module string
	export string
	inputs []string
	watch  bool
	once   bool
}

func newMountCmd(a *app) *cobra.Command {
	o := &mountOptions{}
	cmd := &cobra.Command{
		Use:     "mount",
		Short:   "Mount a remote component and print its output events",
		Example: mountExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.interactive {
				return runInteractive(cmd.Context(), a, o)
			}
			return runMount(cmd, a, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.origin, "origin", "", "remote entry URL or alias")
	f.StringVar(&o.module, "module", "", "exposed module, e.g. ./Widget")
	f.StringVar(&o.export, "export", "", "export inside the module")
	f.StringArrayVar(&o.inputs, "input", nil, "input as key=value, repeatable")
	f.BoolVar(&o.watch, "watch", false, "reload the config file on change and remount")
	f.BoolVar(&o.once, "once", false, "detach right after mounting")
	f.BoolVarP(&a.interactive, "interactive", "i", false, "edit inputs live in a terminal UI")
	return cmd
}

// spec merges the mount section of cfg with flags; flags win.
func (o *mountOptions) spec(cfg *config.Config) remote.Spec {
	s := cfg.Mount.Spec
	if o.origin != "" {
		s.Origin = o.origin
	}
	if o.module != "" {
		s.Module = o.module
	}
	if o.export != "" {
		s.Export = o.export
	}
	return s
}

// values merges configured inputs with --input flags; flags win.
func (o *mountOptions) values(cfg *config.Config) (map[string]any, error) {
	out := make(map[string]any, len(cfg.Mount.Inputs)+len(o.inputs))
	for k, v := range cfg.Mount.Inputs {
		out[k] = v
	}
	flagged, err := parseInputs(o.inputs)
	if err != nil {
		return nil, err
	}
	for k, v := range flagged {
		out[k] = v
	}
	return out, nil
}

// parseInputs reads key=value pairs. Values are decoded as YAML scalars so
// that 5 becomes an int and true a bool; anything else stays a string.
func parseInputs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("input %q is not key=value", p))
		}
		out[k] = parseValue(v)
	}
	return out, nil
}

func parseValue(s string) any {
	if s == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return v
	default:
		return s
	}
}

// lockedWriter serializes output lines; events may arrive from any
// goroutine that drives the component.
type lockedWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func runMount(cmd *cobra.Command, a *app, o *mountOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	values, err := o.values(a.cfg)
	if err != nil {
		return err
	}

	res, err := a.newResolver(ctx)
	if err != nil {
		return err
	}
	defer a.closeResolver(res)

	spec := res.Normalize(o.spec(a.cfg))
	if err := spec.Validate(); err != nil {
		return err
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	ctrl := bridge.NewController(res, bridge.NewMountPoint(spec.Export), bridge.WithLogger(a.log))
	outSub := ctrl.Outputs().Subscribe(func(ev bridge.OutputEvent) {
		out.printf("%s\t%v\n", ev.Property, ev.Payload)
	})
	defer outSub.Unsubscribe()
	failSub := ctrl.Failures().Subscribe(func(err error) {
		a.log.Warn("component failure", zap.Error(err))
	})
	defer failSub.Unsubscribe()

	if err := ctrl.Attach(ctx, spec, bridge.Inputs(values)); err != nil {
		return err
	}
	defer ctrl.Detach()

	if inst := ctrl.Instance(); inst != nil {
		a.log.Info("mounted", zap.Stringer("spec", spec), zap.String("instance", inst.ID()))
	}
	if o.once {
		return nil
	}

	var g errgroup.Group
	if o.watch && a.configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, a.configPath, a.log, func(cfg *config.Config) {
				remount(ctx, a.log, res, ctrl, o, cfg)
			})
		})
	}

	<-ctx.Done()
	return g.Wait()
}

// remount applies a reloaded configuration. A changed spec tears down the
// instance and loads the new one with the new inputs; otherwise the inputs
// are re-projected. A spec the file leaves incomplete keeps the mount.
func remount(ctx context.Context, log *zap.Logger, res *remote.Resolver, ctrl *bridge.Controller, o *mountOptions, cfg *config.Config) {
	spec := res.Normalize(o.spec(cfg))
	if err := spec.Validate(); err != nil {
		log.Warn("reloaded config has no usable spec, keeping mount", zap.Stringer("spec", spec), zap.Error(err))
		return
	}
	values, err := o.values(cfg)
	if err != nil {
		log.Warn("invalid inputs", zap.Error(err))
		return
	}
	if err := ctrl.Replace(ctx, spec, bridge.Inputs(values)); err != nil {
		log.Warn("remount failed", zap.Stringer("spec", spec), zap.Error(err))
	}
}
