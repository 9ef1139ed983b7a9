package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"notioncal/internal/config"
	"notioncal/internal/ics"
	"notioncal/internal/importer"
	appLog "notioncal/internal/log"
	"notioncal/internal/notion"
	"notioncal/internal/schedule"
	"notioncal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; they override file and env settings
// only when set explicitly.
type flagConfig struct {
	configPath string
	envFile    string
	dryRun     bool
	windowDays int
	schedule   string
	listen     string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(run).ExecuteContext(ctx); err != nil {
		appLog.Error("notioncal failed", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI; runFn receives the validated config.
func newRootCmd(runFn func(context.Context, *config.Config) error) *cobra.Command {
	var flags flagConfig

	cmd := &cobra.Command{
		Use:   "notioncal",
		Short: "Import recent ICS calendar events into a Notion database",
		Long: `notioncal reads an ICS feed, keeps the events that ended within the
recency window, and creates one Notion page per event unless a page with the
same name and due date already exists.

Without a schedule it runs a single import pass and exits.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runFn(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Path to YAML config file (created with defaults if missing)")
	f.StringVar(&flags.envFile, "env-file", ".env", "Optional .env file with NOTION_TOKEN, NOTION_DATABASE_ID, ICS_PATH, NOTION_ASSIGNEE_ID")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Check for duplicates but do not create pages")
	f.IntVar(&flags.windowDays, "window-days", config.DefaultWindowDays, "Import events that ended at most this many days ago")
	f.StringVar(&flags.schedule, "schedule", "", "Cron expression; keep running and import on this schedule")
	f.StringVar(&flags.listen, "listen", "", "Status server address in scheduled mode (e.g. 127.0.0.1:8080)")
	f.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")

	return cmd
}

// loadConfig resolves file, env and flags, in that order of precedence
// (lowest first), then validates before any network call is made.
func loadConfig(cmd *cobra.Command, flags flagConfig) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		if cfg == nil {
			return nil, err
		}
		appLog.Error("failed to write default config", err, "config_path", flags.configPath)
	}

	if err := cfg.ApplyEnv(flags.envFile); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if changed("window-days") {
		cfg.WindowDays = flags.windowDays
	}
	if changed("schedule") {
		cfg.RefreshCron = flags.schedule
	}
	if changed("listen") {
		cfg.Listen = flags.listen
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	cfg.Normalize()

	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	appLog.Info("notioncal starting", "version", version)
	appLog.Info("effective config",
		"database_id", cfg.Notion.DatabaseID,
		"window_days", cfg.WindowDays,
		"timezone", cfg.Timezone,
		"expand_recurring", cfg.ExpandRecurring,
		"on_unknown", cfg.OnUnknown,
		"dry_run", cfg.DryRun,
		"schedule", cfg.RefreshCron,
	)

	client, err := notion.NewClient(notion.ClientOptions{
		BaseURL: cfg.Notion.BaseURL,
		Token:   cfg.Notion.Token,
		Version: cfg.Notion.Version,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	imp := importer.New(cfg, ics.NewFetcher(cfg.RequestTimeout), client)
	runner := schedule.NewRunner(imp)

	if cfg.RefreshCron == "" {
		_, err := runner.RunOnce(ctx)
		return err
	}

	if cfg.Listen != "" {
		go func() {
			if err := web.Serve(ctx, cfg, runner); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("HTTP server stopped", err, "listen", cfg.Listen)
			}
		}()
	}

	err = runner.Start(ctx, cfg.RefreshCron)
	appLog.Info("notioncal exiting")
	return err
}
