package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sigmabot/pkg/auth"
	"sigmabot/pkg/config"
	"sigmabot/pkg/engage"
	"sigmabot/pkg/logger"
	"sigmabot/pkg/media"
	"sigmabot/pkg/platform"
	"sigmabot/pkg/ratelimit"
	"sigmabot/pkg/retry"
	"sigmabot/pkg/storage"
	"sigmabot/pkg/tenor"
	"sigmabot/pkg/ui"
	"sigmabot/pkg/ui/tui"
)

var (
	accountName   string
	searchQuery   string
	mediaTerm     string
	pollInterval  time.Duration
	seenWindow    int
	useTUI        bool
	notifications bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engagement bot until interrupted",
	Long: `Run the engagement bot. It logs in, then polls the search every poll
interval and favorites, reposts and replies to each match.

Stop it with Ctrl+C; the current action finishes and temporary media files
are removed.`,
	Example: `  # Run with defaults ($sigma, 60s polls)
  sigmabot run

  # Use a stored account and the live dashboard
  sigmabot run --account mybot --tui

  # Skip posts already handled in the last 500 matches
  sigmabot run --seen-window 500`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
		cmd.Flags().StringVar(&searchQuery, "query", "", "search query (default \"$sigma\")")
		cmd.Flags().StringVar(&mediaTerm, "media-term", "", "Tenor search term (default \"sigma\")")
		cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "time between searches (default 1m)")
		cmd.Flags().IntVar(&seenWindow, "seen-window", -1, "remember this many processed posts and skip repeats (0 disables)")
		cmd.Flags().BoolVar(&useTUI, "tui", false, "show the live dashboard")
		cmd.Flags().BoolVar(&notifications, "notifications", false, "send desktop notifications when a session fails")
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	flags := baseFlags()
	if searchQuery != "" {
		flags["query"] = searchQuery
	}
	if mediaTerm != "" {
		flags["media-term"] = mediaTerm
	}
	if pollInterval > 0 {
		flags["poll-interval"] = pollInterval
	}
	if seenWindow >= 0 {
		flags["seen-window"] = seenWindow
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if useTUI {
		err = logger.InitializeFileOnly(&cfg.Logging)
	} else {
		err = logger.Initialize(&cfg.Logging)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if accountName != "" {
		cfg.Platform.Username = accountName
	}
	resolveStoredCredentials(cfg, log)
	if err := cfg.RequireCredentials(); err != nil {
		return fmt.Errorf("missing credentials:\n%w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scratch, err := storage.NewScratch(cfg.Media.TempDir)
	if err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			log.WithError(err).Warn("Failed to clean up media directory")
		}
	}()

	tracker, err := ratelimit.NewTracker(ratelimit.LimitsFromConfig(cfg.Quota), nil, log)
	if err != nil {
		return fmt.Errorf("invalid quota configuration: %w", err)
	}

	tenorClient := tenor.NewClient(cfg.Tenor, retry.FromSettings(cfg.Retry, log), log)
	fitter := media.NewFitter(media.FitterOptions{
		ScaleFactor:   cfg.Media.ScaleFactor,
		MaxIterations: cfg.Media.MaxIterations,
		Optimize:      cfg.Media.Optimize,
	})
	fetcher := media.NewFetcher(tenorClient, scratch, fitter, cfg.Media.MaxBytes, log)

	var observers engage.Observers
	if notifications {
		var opts []ui.NotifierOption
		if useTUI {
			opts = append(opts, ui.WithConsole(nil))
		}
		notifier := ui.NewNotifier(opts...)
		defer notifier.Close()
		observers = append(observers, notifier)
	}
	var dashboard *tui.Dashboard
	if useTUI {
		dashboard = tui.NewDashboard()
		observers = append(observers, dashboard)
	}

	engager := engage.New(engage.Deps{
		Platform:    platform.NewClient(cfg.Platform, log),
		Media:       fetcher,
		Quota:       tracker,
		Credentials: platform.Credentials{Username: cfg.Platform.Username, Email: cfg.Platform.Email, Password: cfg.Platform.Password},
		Logger:      log,
		Observer:    observers,
	}, cfg.Engagement)

	log.WithFields(map[string]interface{}{
		"username": cfg.Platform.Username,
		"query":    cfg.Engagement.SearchQuery,
		"version":  version,
	}).Info("sigmabot starting")

	if dashboard == nil {
		return engager.Run(ctx)
	}
	return runWithDashboard(ctx, engager, dashboard)
}

// runWithDashboard runs the engager in the background while the dashboard
// owns the terminal. Quitting the dashboard stops the engager.
func runWithDashboard(ctx context.Context, engager *engage.Engager, dashboard *tui.Dashboard) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := engager.Run(ctx)
		dashboard.Stop(err)
		done <- err
	}()

	uiErr := dashboard.Run()
	cancel()
	if err := <-done; err != nil {
		return err
	}
	return uiErr
}

// resolveStoredCredentials fills missing credentials from the credential store
func resolveStoredCredentials(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager("")
	if err != nil {
		log.WithError(err).Debug("Credential store unavailable")
		return
	}
	if err := manager.Resolve(&cfg.Platform); err != nil && !errors.Is(err, auth.ErrCredentialsNotFound) {
		log.WithError(err).Warn("Failed to load stored credentials")
	}
}
