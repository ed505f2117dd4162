package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"savings-client/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Handler receives events for one topic. Handlers must not publish on the
// same bus synchronously; hand the work to a goroutine instead.
type Handler func(ctx context.Context, event Event)

// Unsubscribe detaches a handler. It is safe to call more than once.
type Unsubscribe func()

// Bus is the process-wide publish/subscribe channel. Publish returns only
// after every current subscriber has handled the event, so subscribers observe
// events of a topic in publish order.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

type envelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func NewBus(log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            16,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NopLogger{},
	)
	return &Bus{pubSub: pubSub, logger: log}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(envelope{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(event.EventType(), msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}
	return nil
}

func (b *Bus) Subscribe(topic string, handler Handler) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(context.Background())

	messages, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			if ctx.Err() == nil {
				b.dispatch(msg, handler)
			}
			msg.Ack()
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (b *Bus) dispatch(msg *message.Message, handler Handler) {
	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		b.logger.Error("EventBus", "Dropping undecodable event", map[string]interface{}{"error": err.Error(), "uuid": msg.UUID})
		return
	}
	if env.Data == nil {
		env.Data = map[string]interface{}{}
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("EventBus", "Event handler panicked", map[string]interface{}{"type": env.Type, "panic": fmt.Sprint(r)})
		}
	}()

	handler(msg.Context(), BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt})
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
