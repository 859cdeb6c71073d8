package telegram

import (
	"context"
	"testing"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/pkg/models"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(Config{}, bus.New(), nil); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestHandleUpdatePublishesInbound(t *testing.T) {
	mb := bus.New()
	a, err := NewAdapter(Config{Token: "test-token"}, mb, nil)
	if err != nil {
		t.Fatal(err)
	}

	a.handleUpdate(context.Background(), nil, &tgmodels.Update{
		Message: &tgmodels.Message{
			Text: "hello agent",
			Chat: tgmodels.Chat{ID: 42},
			From: &tgmodels.User{ID: 7},
		},
	})

	msg, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("no inbound message published")
	}
	if msg.Channel != models.ChannelTelegram {
		t.Fatalf("channel = %q", msg.Channel)
	}
	if msg.ChatID != "42" || msg.SenderID != "7" {
		t.Fatalf("routing = %s/%s", msg.ChatID, msg.SenderID)
	}
	if msg.Content != "hello agent" {
		t.Fatalf("content = %q", msg.Content)
	}
}

func TestHandleUpdateIgnoresNonText(t *testing.T) {
	mb := bus.New()
	a, err := NewAdapter(Config{Token: "test-token"}, mb, nil)
	if err != nil {
		t.Fatal(err)
	}

	a.handleUpdate(context.Background(), nil, &tgmodels.Update{})
	a.handleUpdate(context.Background(), nil, &tgmodels.Update{
		Message: &tgmodels.Message{Chat: tgmodels.Chat{ID: 42}},
	})

	if mb.InboundLen() != 0 {
		t.Fatalf("inbound queue = %d, want 0", mb.InboundLen())
	}
}

func TestSendBeforeStartFails(t *testing.T) {
	a, err := NewAdapter(Config{Token: "test-token"}, bus.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Send(context.Background(), models.OutboundMessage{ChatID: "42", Content: "hi"}); err == nil {
		t.Fatal("expected error before start")
	}
}
