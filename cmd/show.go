package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/msalah0e/kgraph/internal/render"
	"github.com/msalah0e/kgraph/internal/resolver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	var (
		asJSON  bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Resolve the knowledge graph once and print it",
		Long: "Fetch the live knowledge graph, falling back to a graph synthesized from\n" +
			"course and progress data, then print it as a terminal map or JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := resolveOnce(cmd.Context(), "show", offline)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return errors.Wrap(err, "encoding view")
				}
				fmt.Println(string(data))
			} else {
				render.Terminal(os.Stdout, view.Snapshot, render.TerminalOptions{
					Notice:    view.Notice,
					Error:     view.Error,
					UpdatedAt: view.UpdatedAt,
					Footer:    "source: " + view.Snapshot.Meta.Source,
				})
			}

			if view.State == resolver.StateFailed {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the view as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Render the cached snapshot without network access")
	return cmd
}
