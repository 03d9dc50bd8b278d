package cmd

import (
	"fmt"

	"github.com/msalah0e/kgraph/internal/cache"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errNoCache = errors.New("no cached snapshot yet, run `kgraph show` while online first")

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the offline snapshot cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.Banner("snapshot cache")

			entry, err := cache.LoadEntry()
			if err != nil {
				return err
			}
			if entry == nil {
				fmt.Println("  No snapshot cached yet.")
				fmt.Printf("  Cache: %s\n", cache.Path())
				return nil
			}

			ui.Table([]string{"Saved", "Source", "Nodes", "Edges", "Fingerprint"}, [][]string{{
				entry.SavedAt.Local().Format("Jan 02 15:04:05"),
				entry.Snapshot.Meta.Source,
				fmt.Sprint(len(entry.Snapshot.Nodes)),
				fmt.Sprint(len(entry.Snapshot.Edges)),
				entry.Fingerprint,
			}})
			fmt.Printf("\n  Cache: %s\n", cache.Path())
			return nil
		},
	}

	cmd.AddCommand(
		cacheClearCmd(),
		cachePathCmd(),
	)

	return cmd
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the cached snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cache.Clear(); err != nil {
				return err
			}
			ui.Good.Printf("  %s Cache cleared\n", ui.StatusIcon(true))
			return nil
		},
	}
}

func cachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cache.Path())
		},
	}
}
