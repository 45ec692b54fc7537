package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel notifications travel on.
const DefaultChannel = "fixit:notifications"

// Publisher sends notifications over Redis pub/sub so that every API instance
// can reach the sessions it holds.
type Publisher struct {
	cache   *redis.Client
	channel string
}

// NewPublisher builds a Redis publisher.
func NewPublisher(cache *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{cache: cache, channel: channel}
}

// Send publishes the message as JSON.
func (p *Publisher) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.cache.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Relay forwards published notifications to local sessions.
type Relay struct {
	cache   *redis.Client
	channel string
	target  Notifier
	logger  *slog.Logger
}

// NewRelay builds a relay from channel to target.
func NewRelay(cache *redis.Client, channel string, target Notifier, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{cache: cache, channel: channel, target: target, logger: logger}
}

// Run subscribes and forwards until ctx is done. ready, if non-nil, is closed
// once the subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.cache.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var message Message
			if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
				r.logger.Warn("drop malformed notification", slog.Any("error", err))
				continue
			}
			if err := r.target.Send(ctx, message); err != nil {
				r.logger.Warn("relay notification", slog.String("kind", message.Kind),
					slog.String("destination", message.Destination), slog.Any("error", err))
			}
		}
	}
}
