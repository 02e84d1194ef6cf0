package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the agent config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config is valid: batchSize=%d queue=%s agent=%s\n",
				config.Pollster.BatchSize, config.Queue.Vendor, config.Agent.Address)
			return nil
		},
	}
}
