package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/providers"
	"github.com/haasonsaas/relay/internal/sessions"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/pkg/models"
)

// Fallback replies for turns that produce no usable text. Three distinct
// cases so the user can tell configuration problems from empty results.
const (
	fallbackNoProvider  = "No language model is configured. Set an API key in the config and restart."
	fallbackEmptyReply  = "I've completed processing but have no response to give."
	fallbackEmptySystem = "Background task completed with no report."
)

// AgentLoop orchestrates turns: it consumes inbound messages from the
// bus, runs the iterator for each, publishes replies, and triggers
// background compaction.
type AgentLoop struct {
	bus     *bus.MessageBus
	store   sessions.Store
	builder *ContextBuilder
	tools   *tools.Registry

	// provider, iterator, and compactor are swapped together by
	// Reconfigure; turns snapshot the triple at entry.
	mu        sync.RWMutex
	provider  providers.LLMClient
	iterator  *Iterator
	compactor *Compactor

	agentCfg      config.AgentConfig
	compactionCfg config.CompactionConfig

	running atomic.Bool

	// seenSessions backs the active-sessions gauge.
	seenSessions sync.Map

	log     *observability.Logger
	metrics *observability.Metrics
}

// LoopConfig bundles the AgentLoop dependencies. Provider may be nil;
// turns then answer with a configuration hint instead of calling a model.
type LoopConfig struct {
	Bus        *bus.MessageBus
	Store      sessions.Store
	Builder    *ContextBuilder
	Registry   *tools.Registry
	Provider   providers.LLMClient
	Agent      config.AgentConfig
	Compaction config.CompactionConfig
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// NewAgentLoop creates the orchestrator.
func NewAgentLoop(cfg LoopConfig) *AgentLoop {
	loop := &AgentLoop{
		bus:           cfg.Bus,
		store:         cfg.Store,
		builder:       cfg.Builder,
		tools:         cfg.Registry,
		agentCfg:      cfg.Agent,
		compactionCfg: cfg.Compaction,
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
	}
	if cfg.Provider != nil {
		loop.install(cfg.Provider)
	}
	return loop
}

// install wires a provider and its two dependents. Callers hold mu when
// the loop is already running.
func (al *AgentLoop) install(provider providers.LLMClient) {
	al.provider = provider
	al.iterator = NewIterator(IteratorConfig{
		Provider:      provider,
		Registry:      al.tools,
		Store:         al.store,
		MaxIterations: al.agentCfg.MaxIterations,
		MaxTokens:     al.agentCfg.MaxTokens,
		Temperature:   al.agentCfg.Temperature,
		Logger:        al.log,
		Metrics:       al.metrics,
	})
	al.compactor = NewCompactor(provider, al.store, al.compactionCfg, al.log, al.metrics)
}

// Reconfigure swaps the LLM provider at runtime. The iterator and
// compactor are rebuilt against the new provider in the same critical
// section, so no turn ever sees a mixed pair.
func (al *AgentLoop) Reconfigure(cfg config.LLMConfig) error {
	provider, err := providers.New(cfg)
	if err != nil {
		return fmt.Errorf("reconfigure provider: %w", err)
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	al.install(provider)
	return nil
}

// snapshot returns the provider triple a turn will use.
func (al *AgentLoop) snapshot() (providers.LLMClient, *Iterator, *Compactor) {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return al.provider, al.iterator, al.compactor
}

// Run consumes the bus until the context is cancelled or Stop is called.
// Errors inside a turn are logged and answered with an error reply; they
// never stop the loop.
func (al *AgentLoop) Run(ctx context.Context) error {
	al.running.Store(true)

	for al.running.Load() {
		msg, ok := al.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}
		al.observeMessage(string(msg.Channel), "inbound")

		reply, target, err := al.processMessage(ctx, msg)
		if err != nil {
			if al.log != nil {
				al.log.Error(ctx, "message processing failed",
					"channel", msg.Channel, "chat_id", msg.ChatID, "error", err)
			}
			reply = fmt.Sprintf("Error processing message: %v", err)
		}
		if reply == "" {
			continue
		}

		al.bus.PublishOutbound(models.OutboundMessage{
			Channel: target.Channel,
			ChatID:  target.ChatID,
			Content: reply,
		})
		al.observeMessage(string(target.Channel), "outbound")
	}

	return nil
}

// Stop prevents the next dequeue. A turn already in progress runs to
// completion.
func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

// replyTarget addresses an outbound reply.
type replyTarget struct {
	Channel models.ChannelType
	ChatID  string
}

// processMessage routes one inbound message and returns the reply text
// plus where to send it.
func (al *AgentLoop) processMessage(ctx context.Context, msg models.InboundMessage) (string, replyTarget, error) {
	ctx = observability.WithChannel(ctx, string(msg.Channel))

	if msg.Channel == models.ChannelSystem {
		return al.processSystemMessage(ctx, msg)
	}

	sessionKey := msg.SessionKey
	if sessionKey == "" {
		sessionKey = models.SessionKey(msg.Channel, msg.ChatID)
	}
	target := replyTarget{Channel: msg.Channel, ChatID: msg.ChatID}

	reply, err := al.runTurn(ctx, turnOptions{
		SessionKey: sessionKey,
		Channel:    string(msg.Channel),
		ChatID:     msg.ChatID,
		Content:    msg.Content,
		Fallback:   fallbackEmptyReply,
	})
	return reply, target, err
}

// processSystemMessage handles system-originated events (cron fires,
// background task reports). The ChatID field carries the origin
// conversation as "channel:chatId"; the reply is routed back there and
// the turn runs in that conversation's session.
func (al *AgentLoop) processSystemMessage(ctx context.Context, msg models.InboundMessage) (string, replyTarget, error) {
	originChannel := "cli"
	originChatID := msg.ChatID
	if idx := strings.Index(msg.ChatID, ":"); idx > 0 {
		originChannel = msg.ChatID[:idx]
		originChatID = msg.ChatID[idx+1:]
	}
	target := replyTarget{Channel: models.ChannelType(originChannel), ChatID: originChatID}

	if al.log != nil {
		al.log.Info(ctx, "processing system message",
			"sender_id", msg.SenderID, "origin", msg.ChatID)
	}

	reply, err := al.runTurn(ctx, turnOptions{
		SessionKey: models.SessionKey(models.ChannelType(originChannel), originChatID),
		Channel:    originChannel,
		ChatID:     originChatID,
		Content:    msg.Content,
		Fallback:   fallbackEmptySystem,
	})
	return reply, target, err
}

// ProcessDirect runs one synchronous turn outside the bus (CLI usage).
// Unlike the loop path, errors propagate to the caller.
func (al *AgentLoop) ProcessDirect(ctx context.Context, content, sessionKey string) (string, error) {
	channel, chatID := "cli", "direct"
	if idx := strings.Index(sessionKey, ":"); idx > 0 {
		channel = sessionKey[:idx]
		chatID = sessionKey[idx+1:]
	}
	return al.runTurn(ctx, turnOptions{
		SessionKey: sessionKey,
		Channel:    channel,
		ChatID:     chatID,
		Content:    content,
		Fallback:   fallbackEmptyReply,
	})
}

// ProcessDirectStream is ProcessDirect with text deltas forwarded to
// onChunk as they arrive.
func (al *AgentLoop) ProcessDirectStream(ctx context.Context, content, sessionKey string, onChunk func(string)) (string, error) {
	channel, chatID := "cli", "direct"
	if idx := strings.Index(sessionKey, ":"); idx > 0 {
		channel = sessionKey[:idx]
		chatID = sessionKey[idx+1:]
	}
	return al.runTurn(ctx, turnOptions{
		SessionKey: sessionKey,
		Channel:    channel,
		ChatID:     chatID,
		Content:    content,
		Fallback:   fallbackEmptyReply,
		OnChunk:    onChunk,
	})
}

type turnOptions struct {
	SessionKey string
	Channel    string
	ChatID     string
	Content    string
	Fallback   string
	OnChunk    func(string)
}

// runTurn executes one full turn: assemble context, persist the user
// message, run the iterator, persist the reply, trigger compaction.
func (al *AgentLoop) runTurn(ctx context.Context, opts turnOptions) (string, error) {
	ctx = observability.WithSessionKey(ctx, opts.SessionKey)

	provider, iterator, compactor := al.snapshot()
	if provider == nil {
		return fallbackNoProvider, nil
	}

	if al.metrics != nil {
		if _, seen := al.seenSessions.LoadOrStore(opts.SessionKey, struct{}{}); !seen {
			al.metrics.ActiveSessions.Inc()
		}
	}

	history, err := al.store.GetHistory(ctx, opts.SessionKey)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	summary, err := al.store.GetSummary(ctx, opts.SessionKey)
	if err != nil {
		return "", fmt.Errorf("load summary: %w", err)
	}

	messages := al.builder.BuildMessages(history, summary, opts.Content, opts.Channel, opts.ChatID)

	if err := al.store.AddMessage(ctx, opts.SessionKey, models.RoleUser, opts.Content); err != nil {
		return "", fmt.Errorf("save user message: %w", err)
	}

	var reply string
	var iterations int
	if opts.OnChunk != nil {
		reply, iterations, err = iterator.RunStream(ctx, opts.SessionKey, messages, opts.OnChunk)
	} else {
		reply, iterations, err = iterator.Run(ctx, opts.SessionKey, messages)
	}
	if err != nil {
		return "", err
	}
	if reply == "" {
		reply = opts.Fallback
	}

	if err := al.store.AddMessage(ctx, opts.SessionKey, models.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("save assistant message: %w", err)
	}
	if err := al.store.Save(ctx, opts.SessionKey); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	if al.log != nil {
		al.log.Info(ctx, "turn complete",
			"session_key", opts.SessionKey,
			"iterations", iterations,
			"reply_chars", len(reply))
	}

	compactor.MaybeCompact(opts.SessionKey)
	return reply, nil
}

func (al *AgentLoop) observeMessage(channel, direction string) {
	if al.metrics == nil {
		return
	}
	al.metrics.MessageCounter.WithLabelValues(channel, direction).Inc()
}
