package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/serve"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live concept map over HTTP",
		Long: `Keep the knowledge graph refreshed and serve it to browsers.

  GET /              live HTML page
  GET /graph.svg     current graph as SVG
  GET /api/v1/graph  current view as JSON (ETag aware)
  GET /ws            websocket pushing every refreshed view
  GET /health        liveness probe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Serve.Addr
			}
			if interval <= 0 {
				interval = cfg.Refresh.Interval.Std()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := ctxlog.FromContext(ctx)

			poller, err := newPoller(ctx, cfg, "serve", interval)
			if err != nil {
				return err
			}
			if err := poller.Start(ctx); err != nil {
				return err
			}
			defer poller.Stop()

			srv := serve.New(poller, serve.Options{Logger: logger})

			ui.Banner("live concept map")
			fmt.Printf("  Listening on %s\n", ui.Brand.Sprint(displayAddr(addr)))
			ui.Subtle.Printf("  Refreshing every %s · Ctrl+C to stop\n", interval)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8088)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval (default from config)")
	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
