package cmd

import (
	"time"

	"github.com/msalah0e/kgraph/internal/top"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"top", "live"},
		Short:   "Full-screen concept map that refreshes on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = cfg.Refresh.Interval.Std()
			}
			poller, err := newPoller(cmd.Context(), cfg, "watch", interval)
			if err != nil {
				return err
			}
			return top.Run(cmd.Context(), poller, top.Config{})
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Refresh interval (default from config)")
	return cmd
}
