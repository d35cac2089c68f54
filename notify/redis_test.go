package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestRedisBroker_PublishSubscribeRoundtrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	broker := NewRedisBroker(client, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := broker.Changes(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	broker.Changed(ctx, "app-1")
	broker.Changed(ctx, "app-2")

	for _, want := range []string{"app-1", "app-2"} {
		select {
		case got := <-changes:
			if got != want {
				t.Fatalf("expected %q, got %q", want, got)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for change event")
		}
	}
}

func TestRedisBroker_StreamClosesOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	broker := NewRedisBroker(client, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := broker.Changes(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()

	select {
	case _, ok := <-changes:
		if ok {
			t.Fatal("expected closed stream after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream close")
	}
}

func TestRedisBroker_PublishFailureIsSwallowed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	broker := NewRedisBroker(client, zerolog.Nop())

	mr.Close()
	client.Close()

	// Best effort: the polling reconciler covers missed events.
	broker.Changed(context.Background(), "app-1")
}
