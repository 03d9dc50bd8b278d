package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/msalah0e/kgraph/internal/config"
	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

var (
	cfg       *config.Config
	logLevel  string
	logFormat string
)

// errReported marks failures that were already shown to the user.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "kgraph",
	Short: "kgraph — the living concept map",
	Long: ui.Brand.Sprint(ui.Graph+" kgraph") + " — see how your courses build on each other\n" +
		ui.Subtle.Sprint("Resolve, lay out and render your knowledge graph from the LMS backend"),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if logFormat != "" {
			loaded.Log.Format = logFormat
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		ui.Configure(cfg.UI.Color && os.Getenv("NO_COLOR") == "", cfg.UI.Emoji)

		logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		slog.SetDefault(logger)
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate("kgraph {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")

	rootCmd.AddCommand(
		showCmd(),
		watchCmd(),
		exportCmd(),
		serveCmd(),
		loginCmd(),
		logoutCmd(),
		statusCmd(),
		configCmd(),
		cacheCmd(),
		historyCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil && !errors.Is(err, errReported) {
		ui.Bad.Fprintf(os.Stderr, "kgraph: %v\n", err)
	}
	return err
}
