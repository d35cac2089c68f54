// Package notify fans application change events out over redis pub/sub so
// every connected client learns about a move the moment it commits, instead
// of waiting for its next reconciliation tick.
package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel carries one application id per message.
const Channel = "applications.changed"

// RedisBroker publishes and subscribes to application change events.
type RedisBroker struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisBroker(client *redis.Client, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log}
}

// Changed publishes the id of a record that just changed. Publishing is best
// effort: the polling reconciler covers missed messages, so a failure is
// logged and swallowed.
func (b *RedisBroker) Changed(ctx context.Context, id string) {
	if err := b.client.Publish(ctx, Channel, id).Err(); err != nil {
		b.log.Warn().Err(err).Str("application_id", id).Msg("publish change event")
	}
}

// Changes subscribes to the change channel and returns a stream of record
// ids. The stream closes when ctx is cancelled or the subscription drops.
func (b *RedisBroker) Changes(ctx context.Context) (<-chan string, error) {
	sub := b.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("notify: subscribe %s: %w", Channel, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
