package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakeguard/wakeguard/internal/config"
	"github.com/wakeguard/wakeguard/internal/metrics"
	"github.com/wakeguard/wakeguard/internal/notify"
	"github.com/wakeguard/wakeguard/internal/scheduler"
	"github.com/wakeguard/wakeguard/internal/store"
	"github.com/wakeguard/wakeguard/internal/trigger"
	"github.com/wakeguard/wakeguard/internal/wakeup"
	"github.com/wakeguard/wakeguard/internal/web"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wakeup daemon (scheduler + status API)",
	Long: `Run WakeGuard as a daemon: fetch a quota snapshot on a fixed interval,
record it, run reset detection, and expose a local status API with metrics.

The application config file is watched; interval changes apply on the next
cycle without a restart.`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, err := store.NewSnapshotStoreWithRetention(app.Config.Paths.DBPath, app.Config.Scheduler.RetentionDays)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	m := metrics.NewMetrics("wakeguard")

	notifier, err := notify.NewTelegram(app.Config.Telegram, app.Logger)
	if err != nil {
		return err
	}

	// The orchestrator fans out through this wrapper so every trigger cycle
	// is counted and reported, wherever it originated.
	runner := &instrumentedRunner{
		runner:   app.Executor,
		metrics:  m,
		notifier: notifier,
	}
	orchestrator := wakeup.NewOrchestrator(app.State, app.Resolver, runner, app.Logger)

	sched := scheduler.New(
		app.Config.Scheduler.Interval,
		app.Source,
		orchestrator,
		snapshots,
		m,
		app.Logger,
	)

	app.Loader.SetOnChange(func(cfg *config.Config) {
		sched.SetInterval(cfg.Scheduler.Interval)
		app.Logger.Info("configuration reloaded", "interval", cfg.Scheduler.Interval.String())
	})
	if err := app.Loader.StartWatcher(); err != nil {
		app.Logger.Warn("config watcher unavailable", "error", err.Error())
	}
	defer app.Loader.StopWatcher()

	var server *web.Server
	if app.Config.Server.Enabled {
		server = web.NewServer(app.Config.Server, app.State, snapshots, m, app.Logger)
		if err := server.Start(); err != nil {
			return err
		}
	}

	sched.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("server shutdown failed", "error", err.Error())
		}
	}
	return nil
}

// instrumentedRunner decorates the executor with metrics and notifications.
type instrumentedRunner struct {
	runner   wakeup.TriggerRunner
	metrics  *metrics.Metrics
	notifier notify.Notifier
}

func (r *instrumentedRunner) Execute(ctx context.Context, req trigger.Request) (*trigger.Result, error) {
	result, err := r.runner.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, res := range result.Results {
		outcome := "success"
		if !res.Success {
			outcome = "failure"
		}
		r.metrics.TriggersTotal.WithLabelValues(string(req.TriggerSource), outcome).Inc()
		r.metrics.TriggerDuration.WithLabelValues(res.ModelID).Observe(float64(res.DurationMs) / float64(time.Second.Milliseconds()))
	}

	r.notifier.TriggerCompleted(req.AccountEmail, result)
	return result, nil
}
