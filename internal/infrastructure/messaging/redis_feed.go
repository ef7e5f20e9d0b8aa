package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/edupredict/student-insight/internal/domain/student"
)

// DefaultChangeChannel carries roster change notifications between instances.
const DefaultChangeChannel = "student-insight:roster"

// RedisChangeFeed relays roster change notifications between API instances.
// Relay publishes the local store's changes; Subscribe delivers the changes
// published by other instances.
type RedisChangeFeed struct {
	client     RedisClient
	channel    string
	instanceID string
	logger     *slog.Logger
}

// RedisChangeFeedConfig configures a RedisChangeFeed.
type RedisChangeFeedConfig struct {
	Client     RedisClient
	Channel    string
	InstanceID string
	Logger     *slog.Logger
}

// NewRedisChangeFeed creates a relay feed.
func NewRedisChangeFeed(cfg RedisChangeFeedConfig) (*RedisChangeFeed, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChangeChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RedisChangeFeed{
		client:     cfg.Client,
		channel:    cfg.Channel,
		instanceID: cfg.InstanceID,
		logger:     cfg.Logger.With("component", "redis_change_feed"),
	}, nil
}

// InstanceID returns the id used to drop this instance's own messages.
func (f *RedisChangeFeed) InstanceID() string {
	return f.instanceID
}

type changeMessage struct {
	InstanceID string             `json:"instance_id"`
	Kind       student.ChangeKind `json:"kind"`
	ID         string             `json:"id"`
}

// Publish announces a local change to the other instances.
func (f *RedisChangeFeed) Publish(ctx context.Context, change student.Change) error {
	data, err := json.Marshal(changeMessage{InstanceID: f.instanceID, Kind: change.Kind, ID: change.ID})
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return f.client.Publish(ctx, f.channel, string(data))
}

// Relay forwards every change from source to Redis until the returned
// function is called or ctx ends.
func (f *RedisChangeFeed) Relay(ctx context.Context, source student.ChangeFeed) (func(), error) {
	return source.Subscribe(ctx, func(change student.Change) {
		if change.Kind == student.ChangeFeedLost {
			f.logger.Warn("relay source lost, local changes are no longer forwarded")
			return
		}
		if err := f.Publish(ctx, change); err != nil {
			f.logger.Warn("failed to relay roster change", "id", change.ID, "error", err)
		}
	})
}

// Subscribe implements student.ChangeFeed for changes made by other instances.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, onChange func(student.Change)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	messages, err := f.client.Subscribe(subCtx, f.channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					if subCtx.Err() == nil {
						f.logger.Error("change subscription closed")
						onChange(student.Change{Kind: student.ChangeFeedLost})
					}
					return
				}
				if msg.Err != nil {
					f.logger.Error("change subscription error", "error", msg.Err)
					continue
				}
				f.deliver(msg.Payload, onChange)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (f *RedisChangeFeed) deliver(payload string, onChange func(student.Change)) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		f.logger.Warn("malformed change message", "error", err)
		return
	}
	if msg.InstanceID == f.instanceID || msg.Kind == student.ChangeFeedLost {
		return
	}
	onChange(student.Change{Kind: msg.Kind, ID: msg.ID})
}

// ══════════════════════════════════════════════════════════════════════════════
// MERGED FEED
// ══════════════════════════════════════════════════════════════════════════════

// mergedFeed subscribes to several feeds as one.
type mergedFeed []student.ChangeFeed

// MergeFeeds combines feeds. Subscribe fails, and undoes any partial
// subscriptions, if any feed fails.
func MergeFeeds(feeds ...student.ChangeFeed) student.ChangeFeed {
	return mergedFeed(feeds)
}

func (m mergedFeed) Subscribe(ctx context.Context, onChange func(student.Change)) (func(), error) {
	var (
		mu       sync.Mutex
		cancels  = make([]func(), 0, len(m))
		delivery = func(c student.Change) {
			// feeds call back from their own goroutines
			mu.Lock()
			defer mu.Unlock()
			onChange(c)
		}
	)

	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}

	for _, feed := range m {
		cancel, err := feed.Subscribe(ctx, delivery)
		if err != nil {
			cancelAll()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}

	var once sync.Once
	return func() { once.Do(cancelAll) }, nil
}
