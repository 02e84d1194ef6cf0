package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/gridagent"
	"github.com/viant/gridagent/progress"
)

func newRunCmd(opts *options) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			config, err := opts.load(ctx)
			if err != nil {
				return err
			}
			if batchSize > 0 {
				config.Pollster.BatchSize = batchSize
			}
			var agentOptions []gridagent.Option
			if opts.verbose {
				agentOptions = append(agentOptions, gridagent.WithProgressListener(func(c progress.Counters) {
					log.Printf("gridagent: pulled=%d skipped=%d requeued=%d dispatched=%d completed=%d failed=%d running=%d",
						c.Pulled, c.Skipped, c.Requeued, c.Dispatched, c.Completed, c.Failed, c.Running)
				}))
			}
			srv, err := gridagent.New(config, agentOptions...)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "override pollster.batchSize")
	return cmd
}
