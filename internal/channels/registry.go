// Package channels defines the adapter contract for messaging platforms
// and the registry that pumps outbound replies to them.
package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/pkg/models"
)

// Adapter is implemented by each messaging platform. Adapters publish
// inbound messages onto the bus themselves; outbound delivery goes through
// Send, driven by the registry's dispatch loop.
type Adapter interface {
	// Start connects to the platform and begins receiving messages.
	Start(ctx context.Context) error

	// Stop shuts the adapter down, honoring the context deadline.
	Stop(ctx context.Context) error

	// Send delivers one outbound message.
	Send(ctx context.Context, msg models.OutboundMessage) error

	// Type identifies the platform.
	Type() models.ChannelType
}

// Registry holds the active adapters and routes outbound messages to them
// by channel type.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.ChannelType]Adapter

	bus *bus.MessageBus
	log *observability.Logger
	wg  sync.WaitGroup
}

// NewRegistry creates an empty registry over the bus.
func NewRegistry(mb *bus.MessageBus, log *observability.Logger) *Registry {
	return &Registry{
		adapters: make(map[models.ChannelType]Adapter),
		bus:      mb,
		log:      log,
	}
}

// Register adds an adapter, replacing any previous adapter of the same type.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Type()] = adapter
}

// Get returns the adapter for a channel type.
func (r *Registry) Get(channelType models.ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[channelType]
	return adapter, ok
}

// StartAll starts every registered adapter and the outbound dispatch loop.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, adapter := range r.adapters {
		if err := adapter.Start(ctx); err != nil {
			return fmt.Errorf("start %s adapter: %w", adapter.Type(), err)
		}
	}

	r.wg.Add(1)
	go r.dispatchLoop(ctx)
	return nil
}

// StopAll stops every adapter. The dispatch loop exits when the StartAll
// context is cancelled.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lastErr error
	for _, adapter := range r.adapters {
		if err := adapter.Stop(ctx); err != nil {
			lastErr = err
			if r.log != nil {
				r.log.Error(ctx, "adapter stop failed", "channel", adapter.Type(), "error", err)
			}
		}
	}
	return lastErr
}

// Wait blocks until the dispatch loop has drained.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// dispatchLoop pumps bus outbound messages to adapters. Delivery failures
// are logged and dropped; a broken channel never stalls the others.
func (r *Registry) dispatchLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.bus.Outbound():
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Registry) dispatch(ctx context.Context, msg models.OutboundMessage) {
	adapter, ok := r.Get(msg.Channel)
	if !ok {
		if r.log != nil {
			r.log.Warn(ctx, "no adapter for outbound message",
				"channel", msg.Channel, "chat_id", msg.ChatID)
		}
		return
	}
	if err := adapter.Send(ctx, msg); err != nil {
		if r.log != nil {
			r.log.Error(ctx, "outbound send failed",
				"channel", msg.Channel, "chat_id", msg.ChatID, "error", err)
		}
	}
}
