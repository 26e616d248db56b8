package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"coinclicker/pkg/config"
	"coinclicker/pkg/logger"
	"coinclicker/pkg/ui"
	"coinclicker/pkg/ui/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const shutdownTimeout = 10 * time.Second

var clickCount int

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Open the coin screen",
	Long: `Open the interactive coin screen.

Keys:
  space/enter  press the coin
  x/esc        dismiss the cooldown alert
  r            retry syncing coins after an error
  ?            toggle help
  q            quit

Logs are written to coinclicker.log in the data directory while the
screen is open, unless a log file is configured.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

// clickCmd represents the click command
var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Press the coin without the interactive screen",
	Long: `Press the coin one or more times and sync the earned coins right away.
Useful in scripts or terminals where the interactive screen is unavailable.`,
	Example: `  coinclicker click
  coinclicker click --count 25`,
	Args: cobra.NoArgs,
	RunE: runClick,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(clickCmd)

	clickCmd.Flags().IntVarP(&clickCount, "count", "n", 1, "number of presses")
}

func runPlay(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("play needs an interactive terminal, use 'coinclicker click' instead")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := logToDataDir(); err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(); err != nil {
		return err
	}

	ctrl := a.newController()
	defer ctrl.Close()

	batcher := a.newBatcher()
	batcher.Start(ctx)

	logger.LogComponentStart(log, "play", map[string]interface{}{
		"username":     a.username(),
		"max_progress": cfg.Coin.EffectiveMaxProgress(),
		"cooldown":     cfg.Coin.Cooldown.String(),
	})

	screen := tui.New(ctx, tui.Options{
		Username:     a.username(),
		Controller:   ctrl,
		Earnings:     batcher,
		Notifier:     ui.NewNotifier(cfg.Notifications),
		TickInterval: cfg.Coin.TickInterval,
	})
	runErr := screen.Run()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	flushErr := batcher.Stop(stopCtx)
	a.savePending(batcher)

	logger.LogComponentStop(log, "play", "screen closed")
	if runErr != nil {
		return fmt.Errorf("coin screen failed: %w", runErr)
	}

	ui.PrintInfo("Clicks this session", fmt.Sprintf("%d", screen.Clicks()))
	ui.PrintInfo("Balance", fmt.Sprintf("%d coins", batcher.Balance()))
	if flushErr != nil {
		ui.PrintWarning(fmt.Sprintf("%d coins are not synced yet and will be sent next time", batcher.Pending()), flushErr)
	}
	return nil
}

func runClick(cmd *cobra.Command, args []string) error {
	if clickCount < 1 {
		return errors.New("--count must be at least 1")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(); err != nil {
		return err
	}

	ctrl := a.newController()
	defer ctrl.Close()
	batcher := a.newBatcher()

	applied := 0
	for i := 0; i < clickCount; i++ {
		if !ctrl.Increment() {
			break
		}
		applied++
	}
	batcher.Record(applied)

	_, flushErr := batcher.Flush(ctx)
	a.savePending(batcher)

	ui.PrintCoinState(ctrl.Snapshot())
	ui.PrintInfo("Earned", fmt.Sprintf("%d coins", applied))
	if applied < clickCount {
		ui.PrintWarning(fmt.Sprintf("%d presses ignored while the coin refills", clickCount-applied))
	}
	if flushErr != nil {
		ui.PrintWarning(fmt.Sprintf("%d coins are not synced yet and will be sent next time", batcher.Pending()), flushErr)
		return nil
	}
	ui.PrintInfo("Balance", fmt.Sprintf("%d coins", batcher.Balance()))
	return nil
}

// logToDataDir sends log output to a file so it does not draw over the
// interactive screen
func logToDataDir() error {
	if cfg.Logging.File != "" {
		return nil
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logCfg := cfg.Logging
	logCfg.File = filepath.Join(dataDir, "coinclicker.log")
	if err := logger.Initialize(&logCfg); err != nil {
		return err
	}
	log = logger.WithField("command", "play")
	return nil
}
