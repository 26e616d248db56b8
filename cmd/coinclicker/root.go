package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"coinclicker/pkg/config"
	"coinclicker/pkg/logger"
	"coinclicker/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile     string
	apiURL         string
	environment    string
	storageBackend string
	logLevel       string
	notifications  bool

	// Set by PersistentPreRunE
	cfg *config.Config
	log logger.Logger = logger.NewNopLogger()
)

var errNotSignedIn = errors.New("not signed in, run 'coinclicker login' first")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coinclicker",
	Short: "Click the coin, wait out the cooldown, collect your earnings",
	Long: `coinclicker is a terminal client for the coin clicker game.

Press the coin to fill the progress bar. Once it is full the button locks
and drains back to empty over the cooldown period, after which you can
click again. Earned coins are synced to your account in batches.

Features:
  - Interactive terminal UI with live cooldown countdown
  - Progress that survives restarts (file or SQLite storage)
  - Session token kept in the system keychain or an encrypted file
  - Automatic retry with exponential backoff for coin syncing
  - Desktop notification when the cooldown finishes`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/coinclicker/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "coin backend base URL")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "environment (development, production)")
	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", "", "storage backend (file, sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")

	rootCmd.SetVersionTemplate(`coinclicker {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandFlags collects the global flags the user actually set
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if apiURL != "" {
		flags["api-url"] = apiURL
	}
	if environment != "" {
		flags["env"] = environment
	}
	if storageBackend != "" {
		flags["storage"] = storageBackend
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}
	return flags
}

// loadConfig resolves the configuration and installs the global logger
func loadConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return err
	}

	if err := logger.Initialize(&loaded.Logging); err != nil {
		return err
	}

	cfg = loaded
	log = logger.WithField("command", cmd.Name())
	log.WithFields(map[string]interface{}{
		"version": version,
		"env":     cfg.Coin.Environment,
		"storage": cfg.Storage.Backend,
	}).Debug("configuration loaded")
	return nil
}
