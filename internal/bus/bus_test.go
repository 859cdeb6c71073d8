package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/haasonsaas/relay/pkg/models"
)

func TestInboundRoundTrip(t *testing.T) {
	b := New()
	b.PublishInbound(models.InboundMessage{Channel: models.ChannelTelegram, ChatID: "42", Content: "hi"})

	msg, ok := b.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("consume returned false with a queued message")
	}
	if msg.ChatID != "42" || msg.Content != "hi" {
		t.Fatalf("got %+v", msg)
	}
}

func TestInboundPreservesOrder(t *testing.T) {
	b := New()
	for i := 0; i < 5; i++ {
		b.PublishInbound(models.InboundMessage{Content: fmt.Sprintf("msg-%d", i)})
	}
	for i := 0; i < 5; i++ {
		msg, ok := b.ConsumeInbound(context.Background())
		if !ok {
			t.Fatal("consume returned false")
		}
		if want := fmt.Sprintf("msg-%d", i); msg.Content != want {
			t.Fatalf("position %d = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestConsumeInboundHonorsCancellation(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := b.ConsumeInbound(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("consume reported a message after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return after cancellation")
	}
}

func TestOutboundDrain(t *testing.T) {
	b := New()
	b.PublishOutbound(models.OutboundMessage{Channel: models.ChannelSlack, ChatID: "C1", Content: "reply"})

	select {
	case msg := <-b.Outbound():
		if msg.ChatID != "C1" {
			t.Fatalf("got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound message not available")
	}
}
