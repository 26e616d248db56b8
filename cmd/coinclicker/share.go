package main

import (
	"fmt"

	"coinclicker/pkg/tasks"
	"coinclicker/pkg/ui"

	"github.com/spf13/cobra"
)

// shareCmd represents the share command
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Show your referral code",
	Long: `Show the referral code friends can use when they sign up. Each friend
who joins with your code earns you a bonus.`,
	Args: cobra.NoArgs,
	RunE: runShare,
}

func init() {
	rootCmd.AddCommand(shareCmd)
}

func runShare(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(); err != nil {
		return err
	}
	if a.user == nil {
		return fmt.Errorf("could not reach %s to fetch your referral code", cfg.API.BaseURL)
	}

	code := a.user.Referral()
	ui.PrintInfo("Your referral code", code)
	fmt.Fprintf(ui.Output, "\nInvite a friend with:\n  coinclicker signup <username> --email <email> --referral %s\n", code)

	svc, err := a.newTasks()
	if err != nil {
		return err
	}
	for _, st := range svc.List() {
		if st.Type == tasks.TypeShare && st.Available {
			fmt.Fprintf(ui.Output, "\nClaim +%d coins for sharing:\n  coinclicker task complete %s\n", st.Reward, st.Type)
		}
	}
	return nil
}
