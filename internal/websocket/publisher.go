package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"whatsdesk-backend/internal/dto"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher pushes fan-out events through Redis pub/sub so every
// ws-server process bridges them into its own hub, regardless of which
// process stored the message.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishNewMessage(conversationID string, message dto.MessageResponse) error {
	return p.publish(TicketRoomID(conversationID), FrameNewMessage, message)
}

func (p *RedisPublisher) PublishTicketOpened(channelBinding string, ticket dto.TicketMetadata) error {
	return p.publish(BindingRoomID(channelBinding), FrameTicketOpened, ticket)
}

func (p *RedisPublisher) publish(channel, frameType string, payload interface{}) error {
	if p.client == nil {
		return fmt.Errorf("websocket publish: redis client not initialised")
	}

	frame, err := newFrame(frameType, payload)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal payload: %w", err)
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal frame: %w", err)
	}

	if err := p.client.Publish(context.Background(), channel, string(raw)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}
