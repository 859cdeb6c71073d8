// Package message provides a tool that sends messages to chat channels,
// letting the agent deliver output to a conversation other than the one
// currently being answered.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/pkg/models"
)

// Tool publishes outbound messages onto the message bus for channel
// adapters to deliver.
type Tool struct {
	bus *bus.MessageBus
}

// New creates a message tool bound to the bus.
func New(b *bus.MessageBus) *Tool {
	return &Tool{bus: b}
}

func (t *Tool) Name() string { return "send_message" }

func (t *Tool) Description() string {
	return "Send a message to a chat on a connected channel (telegram, slack)."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Target channel: telegram or slack.",
				"enum":        []string{"telegram", "slack"},
			},
			"chat_id": map[string]interface{}{
				"type":        "string",
				"description": "Chat or conversation id on the target channel.",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Message text to send.",
			},
		},
		"required": []string{"channel", "chat_id", "content"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Channel string `json:"channel"`
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(input.Content) == "" {
		return "", fmt.Errorf("content is required")
	}

	t.bus.PublishOutbound(models.OutboundMessage{
		Channel: models.ChannelType(input.Channel),
		ChatID:  input.ChatID,
		Content: input.Content,
	})
	return fmt.Sprintf("message queued for %s:%s", input.Channel, input.ChatID), nil
}
