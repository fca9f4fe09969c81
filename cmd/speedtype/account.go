package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"speedtype/internal/client"
	"speedtype/internal/config"
	"speedtype/internal/stats"
	"speedtype/internal/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const requestTimeout = 15 * time.Second

var (
	accountUsername string
	accountEmail    string
	accountPassword string
)

var errNotLoggedIn = errors.New("not logged in; run `speedtype login` first")

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	cmd.Flags().StringVar(&accountUsername, "username", "", "display name")
	cmd.Flags().StringVar(&accountEmail, "email", "", "email address")
	cmd.Flags().StringVar(&accountPassword, "password", "", "password (prompted when omitted)")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&accountEmail, "email", "", "email address")
	cmd.Flags().StringVar(&accountPassword, "password", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ClearCredentials(config.DefaultCredentialsPath()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your aggregate stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
}

func newLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top typists",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
}

// prompt reads a line from stdin, hiding input when secret and stdin is a
// terminal.
func prompt(label string, secret bool) (string, error) {
	fmt.Fprint(os.Stderr, label)
	fd := int(os.Stdin.Fd())
	if secret && term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func fillMissing(target *string, label string, secret bool) error {
	if *target != "" {
		return nil
	}
	v, err := prompt(label, secret)
	if err != nil {
		return err
	}
	*target = v
	return nil
}

func saveSession(cmd *cobra.Command, resp stats.AuthResponse) error {
	creds := config.Credentials{
		UserID:       resp.UserID,
		Username:     resp.Username,
		Subscription: resp.Subscription.String(),
		Token:        resp.Token,
	}
	if err := config.SaveCredentials(config.DefaultCredentialsPath(), creds); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", resp.Username, resp.Subscription)
	return nil
}

// userError replaces the wrapped error with what the server said, or a
// generic notice.
func userError(err error) error {
	log.Printf("[API] %v\n", err)
	return errors.New(client.UserMessage(err))
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}
	if err := fillMissing(&accountUsername, "Username: ", false); err != nil {
		return err
	}
	if err := fillMissing(&accountEmail, "Email: ", false); err != nil {
		return err
	}
	if err := fillMissing(&accountPassword, "Password: ", true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	resp, err := client.New(cfg.ServerURL, "").Register(ctx, stats.RegisterRequest{
		Username: accountUsername,
		Email:    accountEmail,
		Password: accountPassword,
	})
	if err != nil {
		return userError(err)
	}
	return saveSession(cmd, resp)
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}
	if err := fillMissing(&accountEmail, "Email: ", false); err != nil {
		return err
	}
	if err := fillMissing(&accountPassword, "Password: ", true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	resp, err := client.New(cfg.ServerURL, "").Login(ctx, stats.LoginRequest{
		Email:    accountEmail,
		Password: accountPassword,
	})
	if err != nil {
		return userError(err)
	}
	return saveSession(cmd, resp)
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	if !creds.LoggedIn() {
		return errNotLoggedIn
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	resp, err := client.New(cfg.ServerURL, creds.Token).Stats(ctx, creds.UserID)
	if err != nil {
		return userError(err)
	}
	if sub := resp.User.Subscription.String(); sub != creds.Subscription {
		creds.Subscription = sub
		if err := config.SaveCredentials(config.DefaultCredentialsPath(), creds); err != nil {
			log.Printf("[Stats] updating saved tier: %v\n", err)
		}
	}
	history := resp.User.Subscription.Capabilities().ProgressHistory
	return tui.WriteStats(cmd.OutOrStdout(), resp, history)
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	resp, err := client.New(cfg.ServerURL, "").Leaderboard(ctx)
	if err != nil {
		return userError(err)
	}
	return tui.WriteLeaderboard(cmd.OutOrStdout(), resp)
}
