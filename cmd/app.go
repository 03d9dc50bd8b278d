package cmd

import (
	"context"
	"time"

	"github.com/msalah0e/kgraph/internal/activity"
	"github.com/msalah0e/kgraph/internal/api"
	"github.com/msalah0e/kgraph/internal/cache"
	"github.com/msalah0e/kgraph/internal/config"
	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/refresh"
	"github.com/msalah0e/kgraph/internal/resolver"
	"github.com/msalah0e/kgraph/internal/vault"
)

// newClient builds the backend client with tokens from the configured vault.
func newClient(c *config.Config) (*api.Client, error) {
	v, err := vault.New(c.Vault.Backend)
	if err != nil {
		return nil, err
	}
	return api.NewClient(c.API.BaseURL, c.API.Paths(), v, c.API.Timeout.Std()), nil
}

// newPoller wires client, resolver and journal into a poller for command.
// The last cached snapshot seeds the view until the first cycle finishes.
func newPoller(ctx context.Context, c *config.Config, command string, interval time.Duration) (*refresh.Poller, error) {
	client, err := newClient(c)
	if err != nil {
		return nil, err
	}
	r := resolver.New(client, resolver.WithRecompute(c.Layout.Recompute))

	opts := []refresh.Option{refresh.WithObserver(record(command))}
	if cached, err := cache.Load(); err != nil {
		ctxlog.FromContext(ctx).Debug("ignoring unreadable cache", "error", err)
	} else if cached != nil {
		opts = append(opts, refresh.WithInitial(cached))
	}
	return refresh.New(r, interval, opts...), nil
}

// record journals every cycle and caches every snapshot that is not a failure.
func record(command string) func(ctx context.Context, c refresh.Cycle) {
	return func(ctx context.Context, c refresh.Cycle) {
		logger := ctxlog.FromContext(ctx)
		res := c.Result

		entry := activity.Entry{
			Cycle:    c.ID,
			Command:  command,
			State:    string(res.State),
			Error:    res.Error,
			Duration: c.Elapsed.Seconds(),
		}
		if res.Snapshot != nil {
			entry.Source = res.Snapshot.Meta.Source
			entry.Nodes = len(res.Snapshot.Nodes)
			entry.Edges = len(res.Snapshot.Edges)
			entry.Fingerprint = res.Snapshot.Fingerprint()
			entry.Warnings = res.Snapshot.Meta.Warnings
		}
		if err := activity.Log(entry); err != nil {
			logger.Warn("could not write activity log", "error", err)
		}

		if res.State == resolver.StateFailed || res.Snapshot == nil {
			return
		}
		if err := cache.Save(res.Snapshot); err != nil {
			logger.Warn("could not cache snapshot", "error", err)
		}
	}
}

// resolveOnce runs a single journaled cycle. With offline set it reads the
// cache instead and never touches the network.
func resolveOnce(ctx context.Context, command string, offline bool) (refresh.View, error) {
	if offline {
		return cachedView()
	}

	p, err := newPoller(ctx, cfg, command, cfg.Refresh.Interval.Std())
	if err != nil {
		return refresh.View{}, err
	}
	defer p.Stop()
	return p.Refresh(ctx)
}

func cachedView() (refresh.View, error) {
	entry, err := cache.LoadEntry()
	if err != nil {
		return refresh.View{}, err
	}
	if entry == nil {
		return refresh.View{}, errNoCache
	}
	snap := entry.Snapshot
	snap.Meta.Source = graph.SourceCache
	return refresh.View{
		Snapshot:  snap,
		State:     resolver.StateReady,
		Notice:    "Showing cached snapshot from " + entry.SavedAt.Local().Format("Jan 02 15:04") + ".",
		UpdatedAt: entry.SavedAt,
	}, nil
}
