package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"sigmabot/pkg/logger"
	"sigmabot/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noLogo     bool
)

// rootCmd runs the bot when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "sigmabot",
	Short: "Favorite, repost and reply with a GIF to every $sigma post",
	Long: `sigmabot watches the platform search for a keyword and engages with
every match: it favorites the post, reposts it and replies with a random GIF
from Tenor, shrunk to fit the platform's upload limit.

Every remote action is paced by a per-category call budget, so the bot blocks
instead of getting rate limited. Failures are logged and the bot recovers on
its own after a cooldown.

Credentials are read from:
  - Environment variables (TWITTER_USERNAME, TWITTER_EMAIL, TWITTER_PASSWORD, TENOR_API_KEY)
  - A .env file in the working directory
  - Stored accounts (use 'sigmabot auth login')
  - The configuration file`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if noLogo || useTUI {
			return
		}
		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
	RunE: runBot,
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.sigmabot.yaml or ~/.config/sigmabot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noLogo, "no-logo", false, "do not print the logo")

	rootCmd.SetVersionTemplate(`sigmabot {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// baseFlags collects the global flags for config.Load
func baseFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}
