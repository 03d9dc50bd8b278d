// Package top runs the full-screen live view behind `kgraph watch`.
package top

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/refresh"
	"github.com/msalah0e/kgraph/internal/render"
	"github.com/msalah0e/kgraph/internal/ui"
)

// Poller is the refresh loop the screen follows. *refresh.Poller satisfies it.
type Poller interface {
	Start(ctx context.Context) error
	Stop()
	View() refresh.View
	Subscribe(fn func(refresh.View)) (cancel func())
	Interval() time.Duration
}

// Config configures the live screen.
type Config struct {
	// Out defaults to stdout.
	Out io.Writer
	// Clock is how often the footer countdown redraws. Defaults to one second.
	Clock time.Duration
}

// Run draws the current view, starts p and redraws on every published view
// until ctx is done or the user interrupts. It stops p before returning.
func Run(ctx context.Context, p Poller, cfg Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	clock := cfg.Clock
	if clock <= 0 {
		clock = time.Second
	}

	// Hide cursor
	fmt.Fprint(out, "\033[?25l")
	defer fmt.Fprint(out, "\033[?25h\n")

	updates := make(chan refresh.View, 1)
	cancel := p.Subscribe(func(v refresh.View) {
		// Keep only the newest view if the screen falls behind.
		select {
		case <-updates:
		default:
		}
		updates <- v
	})
	defer cancel()

	draw(out, p.View(), p.Interval(), time.Now())

	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	ticker := time.NewTicker(clock)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-updates:
			draw(out, v, p.Interval(), time.Now())
		case now := <-ticker.C:
			draw(out, p.View(), p.Interval(), now)
		}
	}
}

// draw renders one frame off-screen, then writes it in a single call to
// avoid flicker.
func draw(w io.Writer, v refresh.View, interval time.Duration, now time.Time) {
	var buf bytes.Buffer

	// Move cursor to top-left and clear screen
	buf.WriteString("\033[H\033[J")

	snap := v.Snapshot
	if snap == nil {
		snap = graph.Empty("")
	}

	if v.Loading && len(snap.Nodes) == 0 {
		ui.FprintBanner(&buf, "Living Concept Map")
		ui.Subtle.Fprintln(&buf, "  Loading live knowledge graph…")
		w.Write(buf.Bytes())
		return
	}

	render.Terminal(&buf, snap, render.TerminalOptions{
		Notice:    v.Notice,
		Error:     v.Error,
		UpdatedAt: v.UpdatedAt,
		Footer:    footer(v, interval, now),
	})
	w.Write(buf.Bytes())
}

func footer(v refresh.View, interval time.Duration, now time.Time) string {
	source := snapSource(v)
	if v.Loading {
		return fmt.Sprintf("%s · refreshing… · Ctrl+C to exit", source)
	}
	next := v.UpdatedAt.Add(interval).Sub(now).Round(time.Second)
	if next < 0 {
		next = 0
	}
	return fmt.Sprintf("%s · every %s · next in %s · Ctrl+C to exit", source, interval, next)
}

func snapSource(v refresh.View) string {
	if v.Snapshot == nil || v.Snapshot.Meta.Source == "" {
		return "no source"
	}
	return v.Snapshot.Meta.Source
}
