// Package main provides the terminal client for SpeedType.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"speedtype/internal/client"
	"speedtype/internal/config"
	"speedtype/internal/session"
	"speedtype/internal/tier"
	"speedtype/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	playDuration int
	serverURL    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "speedtype",
		Short:             "Typing speed trainer",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE:              runPlayCmd,
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (overrides config)")
	rootCmd.Flags().IntVar(&playDuration, "duration", 60, "seconds per attempt")

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Start a typing attempt",
		Args:  cobra.NoArgs,
		RunE:  runPlayCmd,
	}
	playCmd.Flags().IntVar(&playDuration, "duration", 60, "seconds per attempt")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	return rootCmd
}

// setupLogging sends the log to a file so it never draws over the TUI.
func setupLogging(_ *cobra.Command, _ []string) error {
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.SetOutput(io.Discard)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(f)
	return nil
}

func loadClientConfig(cmd *cobra.Command) (config.ClientConfig, error) {
	cfg, err := config.LoadClient(config.DefaultClientConfigPath())
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if f := cmd.Flags().Lookup("duration"); f != nil && f.Changed {
		cfg.Duration = playDuration
	}
	return cfg, nil
}

func loadCredentials() (config.Credentials, error) {
	creds, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil {
		return creds, fmt.Errorf("failed to load credentials: %w", err)
	}
	return creds, nil
}

func credentialTier(creds config.Credentials) tier.Tier {
	t, err := tier.Parse(creds.Subscription)
	if err != nil {
		return tier.Free
	}
	return t
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", cfg.Duration)
	}
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	t := credentialTier(creds)

	var program *tea.Program
	var reporter *client.Reporter
	var emitter session.Emitter = session.EmitterFunc(func(r session.Result) {
		log.Printf("[Play] Guest attempt %s: %d wpm, %d%% accuracy (not saved)\n", r.AttemptID, r.WPM, r.Accuracy)
	})
	if creds.LoggedIn() {
		api := client.New(cfg.ServerURL, creds.Token)
		reporter = client.NewReporter(api, creds.UserID, func(r client.Report) {
			program.Send(tui.ReportMsg{Report: r})
		})
		emitter = reporter
	}

	engine := session.NewForTier(t, nil, session.Config{Budget: cfg.Duration}, session.WithEmitter(emitter))
	model := tui.NewModel(engine, tui.Options{Tier: t, Username: creds.Username})
	program = tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if reporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reporter.Wait(ctx)
	}
	return nil
}
