package main

import (
	"fmt"
	"os"
	"path/filepath"

	"coinclicker/pkg/config"
	"coinclicker/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage coinclicker configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (COINCLICKER_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
	// config commands load configuration themselves so a broken file can
	// still be inspected
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with default values",
	Long: `Create a configuration file with all options set to their defaults.

The file is written to $HOME/.config/coinclicker/config.yaml unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "coinclicker", "config.yaml"), nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Point api.base_url at your coin backend")
	fmt.Fprintln(ui.Output, "2. Run 'coinclicker config validate' to check the configuration")
	fmt.Fprintln(ui.Output, "3. Sign in with 'coinclicker login'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(loaded)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (COINCLICKER_*)")
	if configFile != "" {
		fmt.Fprintf(ui.Output, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Output, "3. Configuration file: (searched default locations)")
	}
	fmt.Fprintln(ui.Output, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	loaded, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings []string
	if loaded.Storage.Backend == "memory" {
		warnings = append(warnings, "memory storage forgets progress and session on exit")
	}
	if loaded.Coin.MaxProgress > 0 {
		warnings = append(warnings, fmt.Sprintf("max_progress overrides the %s default", loaded.Coin.Environment))
	}
	if !loaded.Retry.Enabled {
		warnings = append(warnings, "retries are disabled, coin syncing gives up on the first error")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Backend: %s\n", loaded.API.BaseURL)
	fmt.Fprintf(ui.Output, "  Environment: %s (max progress %d)\n", loaded.Coin.Environment, loaded.Coin.EffectiveMaxProgress())
	fmt.Fprintf(ui.Output, "  Cooldown: %s\n", loaded.Coin.Cooldown)
	fmt.Fprintf(ui.Output, "  Storage: %s\n", loaded.Storage.Backend)
	fmt.Fprintf(ui.Output, "  Rate limit: %d requests/minute\n", loaded.RateLimit.RequestsPerMinute)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", loaded.Logging.Level)
	return nil
}
