package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/providers"
	"github.com/haasonsaas/relay/internal/sessions"
	"github.com/haasonsaas/relay/pkg/models"
)

// compactionTimeout bounds one background compaction run.
const compactionTimeout = 120 * time.Second

// omissionNote is appended to the summary when oversized messages were
// dropped from the summarization input.
const omissionNote = "\n[Note: Some oversized messages were omitted from this summary for efficiency.]"

// Compactor shrinks long session histories in the background.
//
// After a turn, MaybeCompact checks whether the history crossed the
// message-count or token-estimate threshold and, if so, summarizes
// everything but the most recent messages into the session summary, then
// truncates the history. At most one compaction runs per session at a
// time; a trigger that races an in-flight run is a no-op.
type Compactor struct {
	provider      providers.LLMClient
	store         sessions.Store
	cfg           config.CompactionConfig
	contextWindow int

	inFlight sync.Map

	// sem caps concurrent compactions across all sessions; runs past the
	// cap queue rather than spawning.
	sem chan struct{}

	log     *observability.Logger
	metrics *observability.Metrics

	// wg tracks background runs so tests and shutdown can wait.
	wg sync.WaitGroup
}

// maxConcurrentCompactions bounds compaction work across sessions.
const maxConcurrentCompactions = 4

// NewCompactor creates a compactor. The context window is taken from the
// provider and drives the token thresholds.
func NewCompactor(provider providers.LLMClient, store sessions.Store, cfg config.CompactionConfig, log *observability.Logger, metrics *observability.Metrics) *Compactor {
	return &Compactor{
		provider:      provider,
		store:         store,
		cfg:           cfg,
		contextWindow: provider.ContextWindow(),
		sem:           make(chan struct{}, maxConcurrentCompactions),
		log:           log,
		metrics:       metrics,
	}
}

// MaybeCompact triggers a background compaction when the session history
// exceeds the thresholds. Returns immediately.
func (c *Compactor) MaybeCompact(sessionKey string) {
	history, err := c.store.GetHistory(context.Background(), sessionKey)
	if err != nil {
		if c.log != nil {
			c.log.Warn(context.Background(), "compaction trigger check failed", "session_key", sessionKey, "error", err)
		}
		return
	}

	threshold := c.contextWindow * c.cfg.TokenPercent / 100
	if len(history) <= c.cfg.MessageThreshold && estimateTokens(history) <= threshold {
		return
	}

	if _, running := c.inFlight.LoadOrStore(sessionKey, true); running {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inFlight.Delete(sessionKey)

		c.sem <- struct{}{}
		defer func() { <-c.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), compactionTimeout)
		defer cancel()
		c.compact(ctx, sessionKey)
	}()
}

// Wait blocks until in-flight compactions finish.
func (c *Compactor) Wait() {
	c.wg.Wait()
}

func (c *Compactor) compact(ctx context.Context, sessionKey string) {
	history, err := c.store.GetHistory(ctx, sessionKey)
	if err != nil {
		c.observe("error")
		return
	}
	if len(history) <= c.cfg.RecentKeep {
		c.observe("skipped")
		return
	}
	summary, err := c.store.GetSummary(ctx, sessionKey)
	if err != nil {
		c.observe("error")
		return
	}

	candidates := history[:len(history)-c.cfg.RecentKeep]

	// Oversized messages would dominate the summarization prompt, so
	// they are dropped and noted instead.
	maxMessageTokens := c.contextWindow / 2
	survivors := make([]models.Message, 0, len(candidates))
	omitted := false
	for _, msg := range candidates {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		if estimateMessageTokens(msg) > maxMessageTokens {
			omitted = true
			continue
		}
		survivors = append(survivors, msg)
	}
	if len(survivors) == 0 {
		c.observe("skipped")
		return
	}

	var finalSummary string
	if len(survivors) > c.cfg.BatchThreshold {
		finalSummary = c.summarizeSplit(ctx, survivors, summary)
	} else {
		finalSummary, _ = c.summarizeBatch(ctx, survivors, summary)
	}

	if finalSummary == "" {
		// Summarization failed outright; leave the session untouched and
		// let a later trigger retry.
		c.observe("failed")
		return
	}
	if omitted {
		finalSummary += omissionNote
	}

	if err := c.store.SetSummary(ctx, sessionKey, finalSummary); err != nil {
		c.observe("error")
		return
	}
	if err := c.store.TruncateHistory(ctx, sessionKey, c.cfg.RecentKeep); err != nil {
		c.observe("error")
		return
	}
	if err := c.store.Save(ctx, sessionKey); err != nil {
		c.observe("error")
		return
	}

	if c.log != nil {
		c.log.Info(ctx, "session compacted",
			"session_key", sessionKey,
			"summarized", len(survivors),
			"kept", c.cfg.RecentKeep)
	}
	c.observe("ok")
}

// summarizeSplit handles long spans: two independent batch summaries (the
// first primed with the prior summary) merged by one more model call.
// Merge failure degrades to concatenation.
func (c *Compactor) summarizeSplit(ctx context.Context, survivors []models.Message, priorSummary string) string {
	mid := len(survivors) / 2
	first, _ := c.summarizeBatch(ctx, survivors[:mid], priorSummary)
	second, _ := c.summarizeBatch(ctx, survivors[mid:], "")

	if first == "" {
		return second
	}
	if second == "" {
		return first
	}

	mergePrompt := fmt.Sprintf(
		"Merge these two conversation summaries into one cohesive summary:\n\n1: %s\n\n2: %s",
		first, second)
	resp, err := c.provider.Chat(ctx, &providers.ChatRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: mergePrompt}},
		MaxTokens:   1024,
		Temperature: 0.3,
	})
	if err != nil || resp.Content == "" {
		return first + " " + second
	}
	return resp.Content
}

func (c *Compactor) summarizeBatch(ctx context.Context, batch []models.Message, priorSummary string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Provide a concise summary of this conversation segment, preserving core context and key points.\n")
	if priorSummary != "" {
		prompt.WriteString("Existing context: " + priorSummary + "\n")
	}
	prompt.WriteString("\nCONVERSATION:\n")
	for _, msg := range batch {
		fmt.Fprintf(&prompt, "%s: %s\n", msg.Role, msg.Content)
	}

	resp, err := c.provider.Chat(ctx, &providers.ChatRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt.String()}},
		MaxTokens:   1024,
		Temperature: 0.3,
	})
	if err != nil {
		if c.log != nil {
			c.log.Warn(ctx, "batch summarization failed", "error", err)
		}
		return "", err
	}
	return resp.Content, nil
}

func (c *Compactor) observe(outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CompactionCounter.WithLabelValues(outcome).Inc()
}

// estimateTokens approximates the token count of a history as
// len(content)/4 per message. Tool call payloads are not counted; this is
// a deliberate cheap heuristic, not a tokenizer.
func estimateTokens(messages []models.Message) int {
	total := 0
	for _, msg := range messages {
		total += estimateMessageTokens(msg)
	}
	return total
}

func estimateMessageTokens(msg models.Message) int {
	return len(msg.Content) / 4
}
