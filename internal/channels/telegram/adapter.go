// Package telegram implements the Telegram channel adapter over long
// polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/pkg/models"
)

// maxMessageLength is Telegram's per-message byte limit.
const maxMessageLength = 4096

// Config holds the Telegram adapter settings.
type Config struct {
	// Token is the bot token from @BotFather.
	Token string
}

// Adapter receives Telegram updates via long polling, publishes them as
// inbound messages, and delivers outbound replies with chunking.
type Adapter struct {
	cfg     Config
	bus     *bus.MessageBus
	log     *observability.Logger
	chunker *channels.Chunker

	mu     sync.Mutex
	bot    *bot.Bot
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter creates a Telegram adapter. The bot connection is established
// in Start.
func NewAdapter(cfg Config, mb *bus.MessageBus, log *observability.Logger) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	return &Adapter{
		cfg:     cfg,
		bus:     mb,
		log:     log,
		chunker: channels.NewChunker(maxMessageLength),
	}, nil
}

// Type implements channels.Adapter.
func (a *Adapter) Type() models.ChannelType {
	return models.ChannelTelegram
}

// Start connects the bot and begins long polling in the background.
func (a *Adapter) Start(ctx context.Context) error {
	b, err := bot.New(a.cfg.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.bot = b
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		b.Start(ctx) // blocks until the context is cancelled
	}()

	if a.log != nil {
		a.log.Info(ctx, "telegram adapter started")
	}
	return nil
}

// Stop cancels long polling and waits for the poll loop, honoring the
// context deadline.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram: stop: %w", ctx.Err())
	}
}

// Send delivers one outbound message, splitting it into Telegram-sized
// chunks. Chunks are sent in order; the first failure aborts the rest.
func (a *Adapter) Send(ctx context.Context, msg models.OutboundMessage) error {
	a.mu.Lock()
	b := a.bot
	a.mu.Unlock()
	if b == nil {
		return fmt.Errorf("telegram: adapter not started")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: parse chat id %q: %w", msg.ChatID, err)
	}

	for _, chunk := range a.chunker.Chunk(msg.Content) {
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   chunk,
		}); err != nil {
			return fmt.Errorf("telegram: send to %d: %w", chatID, err)
		}
	}
	return nil
}

// handleUpdate converts one Telegram update into an inbound message.
func (a *Adapter) handleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	senderID := ""
	if update.Message.From != nil {
		senderID = strconv.FormatInt(update.Message.From.ID, 10)
	}

	if a.log != nil {
		a.log.Debug(ctx, "telegram message received",
			"chat_id", chatID, "sender_id", senderID, "chars", len(update.Message.Text))
	}

	a.bus.PublishInbound(models.InboundMessage{
		Channel:  models.ChannelTelegram,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  update.Message.Text,
	})
}
