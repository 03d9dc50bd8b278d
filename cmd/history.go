package cmd

import (
	"fmt"

	"github.com/msalah0e/kgraph/internal/activity"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit  int
		search string
	)

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"log"},
		Short:   "Show recent refresh cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				entries []activity.Entry
				err     error
			)
			if search != "" {
				entries, err = activity.Search(search, limit)
			} else {
				entries, err = activity.Read(limit)
			}
			if err != nil {
				return err
			}

			ui.Banner("refresh history")
			if len(entries) == 0 {
				fmt.Println("  No refresh cycles recorded yet.")
				fmt.Println("  Cycles are recorded by `kgraph show`, `watch`, `export` and `serve`")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				detail := e.Fingerprint
				if e.Error != "" {
					detail = ui.Truncate(e.Error, 40)
				}
				rows = append(rows, []string{
					e.Timestamp.Local().Format("Jan 02 15:04:05"),
					e.Command,
					stateIcon(e.State) + " " + e.State,
					e.Source,
					fmt.Sprintf("%d/%d", e.Nodes, e.Edges),
					fmt.Sprintf("%.2fs", e.Duration),
					detail,
				})
			}
			ui.Table([]string{"Time", "Command", "State", "Source", "Nodes/Edges", "Took", "Detail"}, rows)
			fmt.Printf("\n  Showing %d most recent entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show entries matching text")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the refresh history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := activity.Clear(); err != nil {
				return err
			}
			ui.Good.Printf("  %s History cleared\n", ui.StatusIcon(true))
			return nil
		},
	})

	return cmd
}
