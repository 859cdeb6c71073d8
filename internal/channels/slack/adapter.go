// Package slack implements the Slack channel adapter over Socket Mode.
package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/pkg/models"
)

// maxMessageLength is Slack's practical per-message limit.
const maxMessageLength = 4000

// Config holds the Slack adapter tokens.
type Config struct {
	// BotToken is the xoxb- token for Web API calls.
	BotToken string

	// AppToken is the xapp- token for Socket Mode.
	AppToken string
}

// Adapter receives Slack events via Socket Mode, publishes direct messages
// and mentions as inbound messages, and delivers outbound replies with
// chunking.
type Adapter struct {
	cfg     Config
	bus     *bus.MessageBus
	log     *observability.Logger
	chunker *channels.Chunker

	client       *slack.Client
	socketClient *socketmode.Client

	mu        sync.RWMutex
	botUserID string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewAdapter creates a Slack adapter. Authentication happens in Start.
func NewAdapter(cfg Config, mb *bus.MessageBus, log *observability.Logger) (*Adapter, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: bot_token and app_token are required")
	}

	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &Adapter{
		cfg:          cfg,
		bus:          mb,
		log:          log,
		chunker:      channels.NewChunker(maxMessageLength),
		client:       client,
		socketClient: socketmode.New(client),
	}, nil
}

// Type implements channels.Adapter.
func (a *Adapter) Type() models.ChannelType {
	return models.ChannelSlack
}

// Start authenticates, resolves the bot user id for mention detection, and
// begins the Socket Mode event loop.
func (a *Adapter) Start(ctx context.Context) error {
	authResp, err := a.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.botUserID = authResp.UserID
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go a.eventLoop(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.socketClient.RunContext(ctx); err != nil && ctx.Err() == nil {
			if a.log != nil {
				a.log.Error(ctx, "slack socket mode terminated", "error", err)
			}
		}
	}()

	if a.log != nil {
		a.log.Info(ctx, "slack adapter started", "bot_user_id", authResp.UserID)
	}
	return nil
}

// Stop cancels the event loop and waits for it, honoring the context
// deadline.
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
		return fmt.Errorf("slack: stop: %w", ctx.Err())
	}
}

// Send delivers one outbound message, splitting it into Slack-sized
// chunks. Chunks are sent in order; the first failure aborts the rest.
func (a *Adapter) Send(ctx context.Context, msg models.OutboundMessage) error {
	for _, chunk := range a.chunker.Chunk(msg.Content) {
		_, _, err := a.client.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(chunk, false))
		if err != nil {
			return fmt.Errorf("slack: post to %s: %w", msg.ChatID, err)
		}
	}
	return nil
}

// eventLoop consumes Socket Mode events until the context is cancelled.
func (a *Adapter) eventLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-a.socketClient.Events:
			if !ok {
				return
			}
			switch event.Type {
			case socketmode.EventTypeConnectionError:
				if a.log != nil {
					a.log.Warn(ctx, "slack connection error", "data", fmt.Sprint(event.Data))
				}
			case socketmode.EventTypeEventsAPI:
				a.handleEventsAPI(ctx, event)
			case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
				// acknowledged but not handled
				a.socketClient.Ack(*event.Request)
			}
		}
	}
}

// handleEventsAPI acknowledges and routes one Events API callback.
func (a *Adapter) handleEventsAPI(ctx context.Context, event socketmode.Event) {
	eventsAPIEvent, ok := event.Data.(slackevents.EventsAPIEvent)
	if !ok {
		a.socketClient.Ack(*event.Request)
		return
	}
	a.socketClient.Ack(*event.Request)

	if eventsAPIEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		a.publishInbound(ctx, ev.User, ev.Channel, ev.Text)
	case *slackevents.MessageEvent:
		// bot echoes and edits/joins are not conversation input
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		if !a.isAddressedToBot(ev) {
			return
		}
		a.publishInbound(ctx, ev.User, ev.Channel, ev.Text)
	}
}

// isAddressedToBot reports whether a message event is a DM or mentions the
// bot user.
func (a *Adapter) isAddressedToBot(ev *slackevents.MessageEvent) bool {
	if strings.HasPrefix(ev.Channel, "D") {
		return true
	}
	a.mu.RLock()
	botUserID := a.botUserID
	a.mu.RUnlock()
	return botUserID != "" && strings.Contains(ev.Text, "<@"+botUserID+">")
}

func (a *Adapter) publishInbound(ctx context.Context, user, channel, text string) {
	text = stripMentions(text)
	if text == "" {
		return
	}

	if a.log != nil {
		a.log.Debug(ctx, "slack message received",
			"chat_id", channel, "sender_id", user, "chars", len(text))
	}

	a.bus.PublishInbound(models.InboundMessage{
		Channel:  models.ChannelSlack,
		SenderID: user,
		ChatID:   channel,
		Content:  text,
	})
}

// stripMentions removes <@USERID> tokens so the model sees clean text.
func stripMentions(text string) string {
	for {
		start := strings.Index(text, "<@")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], ">")
		if end < 0 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}
	return strings.TrimSpace(text)
}
