package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Update announces that an artifact was saved.
type Update struct {
	Location string    `json:"location"`
	Size     int       `json:"size"`
	SavedAt  time.Time `json:"saved_at"`
}

// Notifier is implemented by stores that announce saves to other
// processes, so readers sharing the store can reload without polling.
type Notifier interface {
	// Subscribe delivers an Update for every save until ctx is done. The
	// channel is closed when the subscription ends.
	Subscribe(ctx context.Context) (<-chan Update, error)
}

// UpdatesChannel is the Redis pub/sub channel saves to key are announced on.
func UpdatesChannel(key string) string {
	return key + ":updates"
}

// Subscribe implements Notifier. Updates are published in the same
// transaction as the artifact write.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Update, error) {
	channel := UpdatesChannel(s.key)
	pubsub := s.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	updates := make(chan Update)

	go func() {
		defer close(updates)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					// Still a save; the payload is informational.
					u = Update{Location: s.Location()}
				}

				select {
				case updates <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates, nil
}
