// Command bridge mounts remote components, serves the demo remote and
// inspects remote entries.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/bridge"
	"github.com/wippyai/mfe-bridge/config"
	"github.com/wippyai/mfe-bridge/engine"
	"github.com/wippyai/mfe-bridge/remote"
	"github.com/wippyai/mfe-bridge/script"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by all subcommands. interactive is bound by
// mount -i and silences logging while the TUI owns the terminal.
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	configPath  string
	logLevel    string
	interactive bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bridge",
		Short:         "Load remote components and relay their outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newMountCmd(a), newInspectCmd(a), newServeCmd(a))
	return root
}

func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv(os.Getenv)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.interactive {
		a.log = zap.NewNop()
	} else {
		l, err := config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		a.log = l
	}
	bridge.SetLogger(a.log)
	remote.SetLogger(a.log)
	engine.SetLogger(a.log)
	return nil
}

// newResolver builds a resolver with the wasm engine and the Go script
// evaluator registered.
func (a *app) newResolver(ctx context.Context) (*remote.Resolver, error) {
	eng, err := engine.New(ctx, &engine.Config{MemoryLimitPages: a.cfg.Engine.MemoryLimitPages})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	opts := append(a.cfg.ResolverOptions(),
		remote.WithEvaluator(remote.FormatWASM, eng),
		remote.WithEvaluator(remote.FormatGo, script.New(script.WithLogger(a.log))),
		remote.WithLogger(a.log),
	)
	return remote.NewResolver(opts...), nil
}

func (a *app) closeResolver(r *remote.Resolver) {
	if err := r.Close(context.Background()); err != nil {
		a.log.Warn("close resolver", zap.Error(err))
	}
}
