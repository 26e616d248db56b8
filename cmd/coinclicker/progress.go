package main

import (
	"coinclicker/pkg/ui"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coin progress and any running cooldown",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear coin progress and cancel the cooldown",
	Long: `Clear the locally stored coin progress and cancel a running cooldown.
Coins already synced to your account are not affected.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := a.newController()
	defer ctrl.Close()

	if a.user != nil {
		ui.PrintInfo("Signed in as", a.user.Username)
	}
	ui.PrintCoinState(ctrl.Snapshot())
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := a.newController()
	defer ctrl.Close()

	ctrl.ResetProgress()
	ui.PrintSuccess("Coin progress reset")
	ui.PrintCoinState(ctrl.Snapshot())
	return nil
}
