// commands.go contains the cobra command definitions and their flag
// configurations. Each builder creates a command and wires it to its
// handler in serve.go or chat.go.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/cron"
)

// defaultConfigPath is where relay looks for its config unless --config or
// RELAY_CONFIG overrides it.
func defaultConfigPath() string {
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "relay.yaml"
	}
	return filepath.Join(home, ".relay", "relay.yaml")
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent runtime",
		Long: `Start the agent runtime with all configured channels.

The runtime will:
1. Load configuration from the specified file
2. Seed and load the agent workspace
3. Open the session store
4. Start enabled channel adapters (Telegram, Slack)
5. Start the cron scheduler and the agent loop

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  relay serve

  # Start with custom config
  relay serve --config /etc/relay/relay.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		sessionKey string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run turns from the terminal",
		Long: `Run agent turns directly without starting channel adapters.

With a message argument, runs one turn and prints the reply. Without
arguments, starts an interactive prompt; history persists across turns
under the given session key.`,
		Example: `  relay chat "summarize MEMORY.md"
  relay chat --session cli:scratch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, sessionKey, args)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to YAML configuration file")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", "cli:direct",
		"Session key the turn runs under (channel:chatId)")
	return cmd
}

func buildCronCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect scheduled jobs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured cron jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Cron.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cron jobs configured.")
				return nil
			}
			for _, job := range cfg.Cron.Jobs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-20s -> %s\n",
					job.Name, job.Schedule, cron.OriginChatID(job))
			}
			return nil
		},
	}
	list.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to YAML configuration file")

	cmd.AddCommand(list)
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relay version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay %s\n", version)
		},
	}
}
