package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/gridagent"
)

type options struct {
	configURL string
	verbose   bool
}

func newRootCmd(version, commit string) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "gridagent",
		Short:         "gridagent pulls grid tasks from a queue and runs them on a local worker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate(fmt.Sprintf("gridagent %s (commit: %s)\n", version, commit))
	root.PersistentFlags().StringVarP(&opts.configURL, "config", "c", "", "config file path or URL (defaults when empty)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress counters")
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	return root
}

func (o *options) load(ctx context.Context) (*gridagent.Config, error) {
	if o.configURL == "" {
		return gridagent.DefaultConfig(), nil
	}
	return gridagent.LoadConfig(ctx, o.configURL)
}
