package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/drata-client/pkg/metrics"
	"github.com/Sternrassler/drata-client/pkg/poll"
	"github.com/Sternrassler/drata-client/pkg/watermark"
)

// DefaultSchedule polls every five minutes.
const DefaultSchedule = "*/5 * * * *"

func newWatchCommand(a *app) *cobra.Command {
	var (
		flags       triggerFlags
		schedule    string
		metricsAddr string
		runNow      bool
	)

	cmd := &cobra.Command{
		Use:   "watch <event>",
		Short: "Poll one event type on a cron schedule",
		Long: `Poll one event type on a cron schedule and print every event as one JSON
line. A run that is still in progress when the next one is due is skipped.

The schedule accepts standard five field cron expressions and descriptors
such as @hourly or "@every 10m".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			event := args[0]

			if _, err := poll.ParseEventType(event); err != nil {
				return err
			}
			if _, err := cron.ParseStandard(schedule); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}

			store, closeStore, err := a.openStore(ctx, flags.key(a.cfg, event), "")
			if err != nil {
				return err
			}
			defer closeStore()

			if metricsAddr != "" {
				stop := serveMetrics(metricsAddr, a.logger)
				defer stop()
			}

			w := &watcher{app: a, event: event, flags: &flags, store: store, out: cmd.OutOrStdout()}
			return w.run(ctx, schedule, runNow)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&schedule, "schedule", DefaultSchedule, "cron schedule")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "poll once immediately before the first scheduled run")

	return cmd
}

// watcher runs scheduled polls for one trigger instance.
type watcher struct {
	app   *app
	event string
	flags *triggerFlags
	store watermark.Store
	out   io.Writer
}

func (w *watcher) run(ctx context.Context, schedule string, runNow bool) error {
	logger := w.app.logger.With().Str("event", w.event).Logger()
	cronLogger := cronLogAdapter{logger: logger}

	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		cron.WithLogger(cronLogger),
	)
	if _, err := c.AddFunc(schedule, func() { _ = w.pollAndEmit(ctx) }); err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}

	if runNow {
		_ = w.pollAndEmit(ctx)
	}

	c.Start()
	logger.Info().Str("schedule", schedule).Msg("Watching for events")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("Watch stopped")
	return nil
}

// pollAndEmit runs one poll and writes each event as a JSON line.
func (w *watcher) pollAndEmit(ctx context.Context) error {
	events, err := w.app.pollOnce(ctx, w.event, w.flags, w.store)
	if err != nil {
		if ctx.Err() == nil {
			w.app.logger.Error().Err(err).Str("event", w.event).Msg("Poll failed")
		}
		return err
	}
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if _, err := fmt.Fprintln(w.out, string(line)); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics starts the metrics server and returns a function stopping it.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// cronLogAdapter writes cron's scheduler log through zerolog.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (l cronLogAdapter) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
