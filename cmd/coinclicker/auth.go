package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"coinclicker/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	signupEmail    string
	signupReferral string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Sign in to your account",
	Long: `Sign in with your username. The session token is stored in the system
keychain when available, otherwise in an encrypted file in the data directory.`,
	Example: `  # Interactive login
  coinclicker login

  # Login with username
  coinclicker login alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// signupCmd represents the signup command
var signupCmd = &cobra.Command{
	Use:   "signup [username]",
	Short: "Create a new account",
	Long: `Create a new account. If a friend shared their referral code with you,
pass it with --referral and they receive a bonus.`,
	Example: `  coinclicker signup alice --email alice@example.com
  coinclicker signup bob --email bob@example.com --referral alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignup,
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:     "balance",
	Aliases: []string{"whoami"},
	Short:   "Show the signed-in account and its coin balance",
	Args:    cobra.NoArgs,
	RunE:    runBalance,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(balanceCmd)

	signupCmd.Flags().StringVarP(&signupEmail, "email", "e", "", "email address")
	signupCmd.Flags().StringVarP(&signupReferral, "referral", "r", "", "referral code of the friend who invited you")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireGuest(); err != nil {
		return err
	}

	ui.PrintLogo()
	reader := bufio.NewReader(cmd.InOrStdin())
	username, err := argOrPrompt(args, reader, "Username: ")
	if err != nil {
		return err
	}

	user, err := a.session.SignIn(cmd.Context(), username)
	if err != nil {
		return err
	}
	a.rememberAccount(user)

	ui.PrintSuccess("Signed in as " + user.Username)
	ui.PrintInfo("Balance", fmt.Sprintf("%d coins", user.Coins))
	fmt.Fprintln(ui.Output, "\nStart earning with:\n  coinclicker play")
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireGuest(); err != nil {
		return err
	}

	ui.PrintLogo()
	reader := bufio.NewReader(cmd.InOrStdin())
	username, err := argOrPrompt(args, reader, "Username: ")
	if err != nil {
		return err
	}
	email := signupEmail
	if email == "" {
		if email, err = prompt(reader, "Email: "); err != nil {
			return err
		}
	}

	user, err := a.session.SignUp(cmd.Context(), username, email, signupReferral)
	if err != nil {
		return err
	}
	a.rememberAccount(user)

	ui.PrintSuccess("Account created, welcome " + user.Username + "!")
	ui.PrintInfo("Balance", fmt.Sprintf("%d coins", user.Coins))
	ui.PrintInfo("Your referral code", user.Referral())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.session.IsAuthenticated() {
		ui.PrintInfo("Session", "not signed in")
		return nil
	}

	if err := a.session.SignOut(cmd.Context()); err != nil {
		ui.PrintWarning("Backend did not confirm sign out", err)
	}
	a.forgetAccount()
	ui.PrintSuccess("Signed out")
	return nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(); err != nil {
		return err
	}
	if a.user == nil {
		return fmt.Errorf("could not reach %s to fetch your balance", cfg.API.BaseURL)
	}

	ui.PrintInfo("Username", a.user.Username)
	if a.user.Email != "" {
		ui.PrintInfo("Email", a.user.Email)
	}
	ui.PrintInfo("Balance", fmt.Sprintf("%d coins", a.user.Coins))
	ui.PrintInfo("Referral code", a.user.Referral())
	return nil
}

// argOrPrompt returns the first argument, or asks for it
func argOrPrompt(args []string, reader *bufio.Reader, label string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return prompt(reader, label)
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(ui.Output, label)
	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}
