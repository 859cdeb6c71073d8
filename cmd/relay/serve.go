package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/relay/internal/agent"
	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/channels"
	slackadapter "github.com/haasonsaas/relay/internal/channels/slack"
	"github.com/haasonsaas/relay/internal/channels/telegram"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/cron"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/providers"
	"github.com/haasonsaas/relay/internal/sessions"
	"github.com/haasonsaas/relay/internal/skills"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/internal/tools/files"
	"github.com/haasonsaas/relay/internal/tools/message"
	"github.com/haasonsaas/relay/internal/tools/shell"
	"github.com/haasonsaas/relay/internal/workspace"
)

// stopTimeout bounds graceful shutdown of adapters and the metrics server.
const stopTimeout = 10 * time.Second

// runServe wires the full runtime and blocks until the context is
// cancelled.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	log := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	var metrics *observability.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(ctx, "metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		log.Info(ctx, "metrics endpoint up", "addr", cfg.Metrics.Addr)
	}

	result, err := workspace.EnsureWorkspace(cfg.Workspace)
	if err != nil {
		return fmt.Errorf("prepare workspace: %w", err)
	}
	if len(result.Created) > 0 {
		log.Info(ctx, "workspace seeded", "root", cfg.Workspace, "files", len(result.Created))
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	mb := bus.New()

	registry := tools.NewRegistry(log, metrics)
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
	if err := skillMgr.StartWatching(ctx); err != nil {
		log.Warn(ctx, "skill watching unavailable", "error", err)
	}
	defer skillMgr.Close()

	var provider providers.LLMClient
	if cfg.LLM.APIKey != "" {
		provider, err = providers.New(cfg.LLM)
		if err != nil {
			return fmt.Errorf("configure provider: %w", err)
		}
		log.Info(ctx, "provider configured", "provider", provider.Name(), "model", cfg.LLM.Model)
	} else {
		log.Warn(ctx, "no LLM API key configured, replies will ask for setup")
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
		Metrics:    metrics,
	})

	chRegistry := channels.NewRegistry(mb, log)
	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(telegram.Config{Token: cfg.Channels.Telegram.Token}, mb, log)
		if err != nil {
			return err
		}
		chRegistry.Register(adapter)
	}
	if cfg.Channels.Slack.Enabled {
		adapter, err := slackadapter.NewAdapter(slackadapter.Config{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
		}, mb, log)
		if err != nil {
			return err
		}
		chRegistry.Register(adapter)
	}
	if err := chRegistry.StartAll(ctx); err != nil {
		return err
	}

	scheduler, err := cron.NewScheduler(mb, cfg.Cron.Jobs, log)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "relay started",
		"workspace", cfg.Workspace,
		"session_backend", cfg.Session.Backend,
		"cron_jobs", len(cfg.Cron.Jobs))

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")

	loop.Stop()
	scheduler.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := chRegistry.StopAll(stopCtx); err != nil {
		log.Error(stopCtx, "adapter shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			log.Error(stopCtx, "metrics server shutdown failed", "error", err)
		}
	}
	<-loopDone
	return nil
}

// openStore opens the configured session backend and returns the store and
// its closer.
func openStore(cfg *config.Config) (sessions.Store, func(), error) {
	switch cfg.Session.Backend {
	case "memory":
		return sessions.NewMemoryStore(), func() {}, nil
	case "sqlite", "":
		store, err := sessions.NewSQLiteStore(cfg.Session.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
