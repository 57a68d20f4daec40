package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/remote"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		origin string
		load   bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the modules and exports of a remote entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), a, origin, load)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "remote entry URL or alias (defaults to default_origin)")
	cmd.Flags().BoolVar(&load, "load", true, "fetch and evaluate every module to list its runtime exports")
	return cmd
}

func runInspect(ctx context.Context, w io.Writer, a *app, origin string, load bool) error {
	res, err := a.newResolver(ctx)
	if err != nil {
		return err
	}
	defer a.closeResolver(res)

	origin = res.Normalize(remote.Spec{Origin: origin}).Origin
	m, err := res.Manifest(ctx, origin)
	if err != nil {
		return err
	}
	names := m.ModuleNames()

	if load {
		specs := make([]remote.Spec, len(names))
		for i, name := range names {
			specs[i] = remote.Spec{Origin: origin, Module: name}
		}
		// Failures are reported per module below.
		if err := res.Preload(ctx, specs...); err != nil {
			a.log.Debug("preload incomplete", zap.Error(err))
		}
	}

	title := m.Name
	if title == "" {
		title = "remote"
	}
	fmt.Fprintf(w, "%s (%s)\n", title, origin)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		exposed, _ := m.Module(name)
		fmt.Fprintf(tw, "  %s\t%s\t%s\t\n", name, exposed.Format, exposed.Path)

		var ns contract.Namespace
		if load {
			ns, err = res.Resolve(ctx, remote.Spec{Origin: origin, Module: name})
			if err != nil {
				fmt.Fprintf(tw, "    error\t%v\t\t\n", err)
				continue
			}
		}
		for _, export := range exportNames(exposed, ns) {
			fmt.Fprintf(tw, "    %s\t%s\t%s\t\n", export, describeInputs(exposed.Exports[export]), describeOutputs(exposed.Exports[export]))
		}
	}
	return tw.Flush()
}

// exportNames lists declared exports together with those found at runtime.
func exportNames(exposed remote.Exposed, ns contract.Namespace) []string {
	seen := make(map[string]bool, len(exposed.Exports)+len(ns))
	for name := range exposed.Exports {
		seen[name] = true
	}
	for name := range ns {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func describeInputs(d contract.Declaration) string {
	if len(d.Inputs) == 0 {
		return "inputs: -"
	}
	keys := make([]string, 0, len(d.Inputs))
	for k := range d.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + d.Inputs[k]
	}
	return "inputs: " + strings.Join(parts, ", ")
}

func describeOutputs(d contract.Declaration) string {
	if len(d.Outputs) == 0 {
		return "outputs: *"
	}
	return "outputs: " + strings.Join(d.Outputs, ", ")
}
