// Package bus provides the in-process message bus connecting channel
// adapters, the scheduler, and the agent loop.
package bus

import (
	"context"

	"github.com/haasonsaas/relay/pkg/models"
)

// defaultQueueSize bounds each direction of the bus. Publishing past the
// bound blocks the producer rather than dropping messages.
const defaultQueueSize = 128

// MessageBus carries inbound messages toward the agent loop and outbound
// replies toward channel adapters.
type MessageBus struct {
	inbound  chan models.InboundMessage
	outbound chan models.OutboundMessage
}

// New creates a message bus with the default queue size.
func New() *MessageBus {
	return NewWithSize(defaultQueueSize)
}

// NewWithSize creates a message bus with the given per-direction queue size.
func NewWithSize(size int) *MessageBus {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &MessageBus{
		inbound:  make(chan models.InboundMessage, size),
		outbound: make(chan models.OutboundMessage, size),
	}
}

// PublishInbound enqueues a message for the agent loop.
func (b *MessageBus) PublishInbound(msg models.InboundMessage) {
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or the context is
// cancelled. The second return value is false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (models.InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return models.InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}

// PublishOutbound enqueues a reply for channel delivery.
func (b *MessageBus) PublishOutbound(msg models.OutboundMessage) {
	b.outbound <- msg
}

// Outbound returns the channel the channel registry drains for delivery.
func (b *MessageBus) Outbound() <-chan models.OutboundMessage {
	return b.outbound
}

// InboundLen reports the number of queued inbound messages.
func (b *MessageBus) InboundLen() int {
	return len(b.inbound)
}
