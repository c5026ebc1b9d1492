package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"logvault/internal/server"
	"logvault/internal/stats"
	"logvault/internal/watcher"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the logs API over HTTP",
		Long: `Preload metadata for every log file, watch the logs directory for
changes and serve the query API, statistics, change feed and metrics.

Examples:
  logvault serve --log-dir /var/log/security
  LOGVAULT_LISTEN_ADDR=0.0.0.0:9000 logvault serve`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().String("listen", "", "listen address (default from config)")
	cmd.Flags().Bool("watch", true, "watch the logs directory for changes")
	cobra.CheckErr(a.v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen")))
	cobra.CheckErr(a.v.BindPFlag("watch", cmd.Flags().Lookup("watch")))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg, svc, err := a.setup("")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Preload()

	var feed *watcher.Feed
	if cfg.Watch {
		feed = startWatcher(ctx, svc.Dir(), svc.Pattern(), svc)
	}

	slog.Info("logvault starting", "dir", svc.Dir(), "addr", cfg.ListenAddr, "watch", feed != nil)
	return server.New(svc, stats.NewAggregator(svc), feed, cfg.ListenAddr).Run(ctx)
}

// startWatcher returns nil when the directory cannot be watched; serving
// continues without a change feed
func startWatcher(ctx context.Context, dir, pattern string, refresher watcher.Refresher) *watcher.Feed {
	feed := watcher.NewFeed()
	w, err := watcher.New(dir, refresher, feed)
	if err != nil {
		slog.Warn("change feed disabled", "dir", dir, "err", err)
		return nil
	}
	w.Pattern = pattern

	go func() {
		w.Run(ctx)
		feed.Close()
	}()
	return feed
}
