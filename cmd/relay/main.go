// Package main provides the CLI entry point for relay, a personal
// multi-channel AI agent runtime.
//
// Relay connects messaging platforms (Telegram, Slack) to LLM providers
// (Anthropic, OpenAI) around a persistent per-conversation session with
// tool execution, background history compaction, and scheduled prompts.
//
// # Basic Usage
//
// Start the runtime:
//
//	relay serve --config relay.yaml
//
// Run a one-off turn from the terminal:
//
//	relay chat "what changed in the workspace today?"
//
// # Environment Variables
//
// Configuration values may reference environment variables with ${VAR}
// syntax, commonly:
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - TELEGRAM_BOT_TOKEN: Telegram bot token
//   - SLACK_BOT_TOKEN: Slack bot OAuth token
//   - SLACK_APP_TOKEN: Slack app-level token for Socket Mode
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "relay",
		Short:         "Personal multi-channel AI agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildCronCmd(),
		buildVersionCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
