package cmd

import (
	"os"
	"strings"

	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/refresh"
	"github.com/msalah0e/kgraph/internal/render"
	"github.com/msalah0e/kgraph/internal/resolver"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var exportFormats = []string{"json", "yaml", "dot", "svg", "html"}

func exportCmd() *cobra.Command {
	var (
		format  string
		output  string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the knowledge graph as JSON, YAML, DOT, SVG or HTML",
		Example: "  kgraph export --format svg -o graph.svg\n" +
			"  kgraph export --format dot | dot -Tpng > graph.png",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := resolveOnce(cmd.Context(), "export", offline)
			if err != nil {
				return err
			}
			if view.State == resolver.StateFailed {
				return errors.New(view.Error)
			}

			data, err := encodeView(view, format)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", output)
			}
			ui.Good.Fprintf(os.Stderr, "  %s %d nodes · %d edges → %s\n",
				ui.StatusIcon(true), len(view.Snapshot.Nodes), len(view.Snapshot.Edges), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: "+strings.Join(exportFormats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Export the cached snapshot without network access")
	return cmd
}

// encodeView renders view in one of exportFormats.
func encodeView(view refresh.View, format string) ([]byte, error) {
	snap := view.Snapshot
	if snap == nil {
		snap = graph.Empty("")
	}

	switch strings.ToLower(format) {
	case "json":
		data, err := snap.ExportJSON()
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return snap.ExportYAML()
	case "dot":
		return []byte(snap.ExportDOT()), nil
	case "svg":
		return []byte(render.SVG(snap)), nil
	case "html":
		return render.HTML(snap, render.PageOptions{Notice: view.Notice, Error: view.Error})
	default:
		return nil, errors.Errorf("unknown format %q (want one of %s)", format, strings.Join(exportFormats, ", "))
	}
}
