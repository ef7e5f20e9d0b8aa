package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edupredict/student-insight/internal/infrastructure/messaging"
)

// PubSub adapts Cache to messaging.RedisClient.
type PubSub struct {
	cache *Cache
}

// NewPubSub creates a new PubSub adapter.
func NewPubSub(cache *Cache) *PubSub {
	return &PubSub{cache: cache}
}

// Publish sends message on channel. Strings and byte slices go out as-is,
// anything else is JSON encoded.
func (p *PubSub) Publish(ctx context.Context, channel string, message any) error {
	if channel == "" {
		return ErrCacheKeyEmpty
	}

	var payload any
	switch m := message.(type) {
	case string, []byte:
		payload = m
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		payload = data
	}
	return p.cache.client.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to channels and forwards messages until ctx ends.
// The returned channel is closed when the subscription stops.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.cache.client.Subscribe(ctx, channels...)

	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: subscribe: %v", ErrCacheConnection, err)
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying client.
func (p *PubSub) Close() error {
	return p.cache.Close()
}
