package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/llmclient"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/planner"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"goal...\"",
		Short: "Runs a browsing session toward a natural-language goal",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line flags override
			// values from the config file and environment.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("agent.history_limit", cmd.Flags().Lookup("history-limit")); err != nil {
				return err
			}
			return viper.BindPFlag("agent.interaction_log_path", cmd.Flags().Lookup("interaction-log"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal so the flag overrides bound in PreRunE apply.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			goal := strings.TrimSpace(strings.Join(args, " "))
			if goal == "" {
				return fmt.Errorf("goal must not be empty")
			}

			oracle, err := llmclient.NewGoogleClient(cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM client: %w", err)
			}

			interactionLog, err := planner.NewInteractionLog(cfg.Agent.InteractionLogPath, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize interaction log: %w", err)
			}

			driver := browser.NewDriver(cfg.Browser, logger)
			if err := driver.Launch(ctx); err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}
			defer func() {
				if err := driver.Close(); err != nil {
					logger.Warn("Error during browser shutdown", zap.Error(err))
				}
			}()

			pl := planner.New(logger, oracle, interactionLog, planner.Options{
				Temperature:  cfg.LLM.Temperature,
				HistoryLimit: cfg.Agent.HistoryLimit,
			})

			console := newConsole(cmd.InOrStdin(), cmd.OutOrStdout())
			loop := agent.NewLoop(logger, pl, driver, console, console, cfg.Agent.MaxDecodeRetries)

			logger.Info("Starting browsing session",
				zap.String("session_id", pl.SessionID()),
				zap.String("goal", goal),
				zap.Bool("headless", cfg.Browser.Headless),
			)

			session, err := loop.Run(ctx, goal)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Session aborted gracefully", zap.String("session_id", pl.SessionID()))
					return fmt.Errorf("session aborted by user signal")
				}
				logger.Error("Session failed", zap.Error(err), zap.String("session_id", pl.SessionID()))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nSession complete. Session ID: %s\n", pl.SessionID())
			if session.Extracted != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Last extracted content: %s\n", session.Extracted)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Oracle exchanges logged to: %s\n", cfg.Agent.InteractionLogPath)
			return nil
		},
	}

	runCmd.Flags().Bool("headless", false, "Run the browser without a visible window. (Overrides config/env)")
	runCmd.Flags().Int("history-limit", 0, "Max conversation messages sent per planning call; 0 sends everything. (Overrides config/env)")
	runCmd.Flags().String("interaction-log", "llm_interactions.json", "Path for the oracle exchange log. (Overrides config/env)")

	return runCmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
