package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/relay/internal/agent"
	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/providers"
	"github.com/haasonsaas/relay/internal/skills"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/internal/tools/files"
	"github.com/haasonsaas/relay/internal/tools/message"
	"github.com/haasonsaas/relay/internal/tools/shell"
	"github.com/haasonsaas/relay/internal/workspace"
)

// runChat runs agent turns from the terminal. With a message it executes a
// single turn; without one it reads turns interactively until EOF.
func runChat(ctx context.Context, configPath, sessionKey string, args []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	log := observability.NewLogger(observability.LogConfig{
		Level:  "warn", // keep terminal output clean
		Format: cfg.Logging.Format,
	})

	if _, err := workspace.EnsureWorkspace(cfg.Workspace); err != nil {
		return fmt.Errorf("prepare workspace: %w", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	mb := bus.New()

	registry := tools.NewRegistry(log, nil)
	fileCfg := files.Config{Workspace: cfg.Workspace}
	registry.Register(files.NewReadTool(fileCfg))
	registry.Register(files.NewWriteTool(fileCfg))
	registry.Register(files.NewListTool(fileCfg))
	registry.Register(shell.New(cfg.Workspace, cfg.Agent.ShellTimeout))
	registry.Register(message.New(mb))

	skillMgr := skills.NewManager(cfg.Workspace, log)
	if err := skillMgr.Discover(ctx); err != nil {
		log.Warn(ctx, "skill discovery failed", "error", err)
	}

	var provider providers.LLMClient
	if cfg.LLM.APIKey != "" {
		provider, err = providers.New(cfg.LLM)
		if err != nil {
			return fmt.Errorf("configure provider: %w", err)
		}
	}

	loop := agent.NewAgentLoop(agent.LoopConfig{
		Bus:        mb,
		Store:      store,
		Builder:    agent.NewContextBuilder(cfg.Workspace, registry, skillMgr),
		Registry:   registry,
		Provider:   provider,
		Agent:      cfg.Agent,
		Compaction: cfg.Compaction,
		Logger:     log,
	})

	if len(args) > 0 {
		return chatTurn(ctx, loop, strings.Join(args, " "), sessionKey)
	}

	fmt.Println("relay chat (ctrl-d to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := chatTurn(ctx, loop, line, sessionKey); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
}

// chatTurn streams one reply to stdout.
func chatTurn(ctx context.Context, loop *agent.AgentLoop, content, sessionKey string) error {
	streamed := false
	reply, err := loop.ProcessDirectStream(ctx, content, sessionKey, func(chunk string) {
		streamed = true
		fmt.Print(chunk)
	})
	if err != nil {
		return err
	}
	// tool-only or fallback turns produce no stream chunks
	if !streamed {
		fmt.Print(reply)
	}
	fmt.Println()
	return nil
}
