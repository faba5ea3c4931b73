// Command glucoguard runs the clinical alert and notification engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/glucoguard/glucoguard/internal/alerting"
	"github.com/glucoguard/glucoguard/internal/conf"
	"github.com/glucoguard/glucoguard/internal/datastore"
	"github.com/glucoguard/glucoguard/internal/datastore/repository"
	"github.com/glucoguard/glucoguard/internal/i18n"
	"github.com/glucoguard/glucoguard/internal/logger"
	"github.com/glucoguard/glucoguard/internal/push"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "glucoguard",
		Short:         "Clinical alert and notification engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")

	root.AddCommand(newServeCommand(&configFile))
	root.AddCommand(newRunRuleCommand(&configFile))
	root.AddCommand(newMigrateCommand(&configFile))
	return root
}

func newLogger(settings *conf.Settings) logger.Logger {
	level := logger.LogLevelInfo
	switch settings.Log.Level {
	case "debug":
		level = logger.LogLevelDebug
	case "warn":
		level = logger.LogLevelWarn
	case "error":
		level = logger.LogLevelError
	}
	return logger.NewSlogLogger(os.Stderr, level, nil)
}

// buildEngine wires the full pipeline from settings. An empty push URL
// template degrades to mock mode instead of failing: the engine must stay
// operable without live credentials.
func buildEngine(settings *conf.Settings, log logger.Logger) (*alerting.Engine, error) {
	db, err := datastore.Open(settings.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := datastore.Migrate(db); err != nil {
		return nil, err
	}

	var sender push.Sender
	if settings.Push.URLTemplate == "" {
		log.Warn("no push channel configured, dispatching in mock mode")
	} else {
		sender, err = push.NewShoutrrrSender(settings.Push.URLTemplate)
		if err != nil {
			return nil, err
		}
	}

	catalog, err := i18n.Load()
	if err != nil {
		return nil, err
	}

	signals := repository.NewSignalRepository(db)
	preferences := repository.NewPreferenceRepository(db)
	notifications := repository.NewNotificationRepository(db)

	engine := alerting.NewEngine(
		alerting.DefaultCatalog(),
		signals,
		notifications,
		alerting.NewPreferenceResolver(preferences, settings.Alerting.PreferenceCacheTTL.Std()),
		alerting.NewContentResolver(catalog, settings.Alerting.FallbackLocale),
		alerting.NewDispatcher(sender, notifications, log),
		settings.Alerting.DispatchWorkers,
		log,
	)
	return engine, nil
}

func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rule scheduler until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(*configFile)
			if err != nil {
				return err
			}
			log := newLogger(settings)

			engine, err := buildEngine(settings, log)
			if err != nil {
				return err
			}
			engine.StartRetentionCleanup(settings.Alerting.HistoryRetention.Std())

			scheduler := alerting.NewScheduler(engine, settings.Alerting.Cadence, log)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			scheduler.Start(ctx)

			var metricsServer *http.Server
			if settings.Metrics.Addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsServer = &http.Server{Addr: settings.Metrics.Addr, Handler: mux}
				go func() {
					if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("metrics server failed", logger.Error(err))
					}
				}()
				log.Info("metrics endpoint listening", logger.String("addr", settings.Metrics.Addr))
			}

			log.Info("scheduler started",
				logger.Int("rules", len(engine.Catalog().All())))
			<-ctx.Done()

			log.Info("shutting down, waiting for in-flight runs")
			scheduler.Stop()
			engine.Stop()
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			}
			return nil
		},
	}
}

func newRunRuleCommand(configFile *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "run-rule <rule-type>",
		Short: "Run one rule immediately, for all patients or a single one",
		Long: "Runs the full candidate pipeline for one rule without waiting for the " +
			"scheduler. Results go through the same dedup, preference, and dispatch " +
			"path as scheduled runs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(*configFile)
			if err != nil {
				return err
			}
			log := newLogger(settings)

			engine, err := buildEngine(settings, log)
			if err != nil {
				return err
			}
			defer engine.Stop()

			var results []alerting.CandidateResult
			if userID != "" {
				results, err = engine.RunRuleForUser(cmd.Context(), args[0], userID)
			} else {
				results, err = engine.RunRule(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("no candidates")
				return nil
			}
			for _, r := range results {
				if r.Reason != "" {
					fmt.Printf("%s\t%s\t%s (%s)\n", r.Candidate.PatientID, r.Candidate.RuleType, r.Status, r.Reason)
				} else {
					fmt.Printf("%s\t%s\t%s\n", r.Candidate.PatientID, r.Candidate.RuleType, r.Status)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "run for a single patient only")
	return cmd
}

func newMigrateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			settings, err := conf.Load(*configFile)
			if err != nil {
				return err
			}
			db, err := datastore.Open(settings.Database.Path)
			if err != nil {
				return err
			}
			return datastore.Migrate(db)
		},
	}
}
