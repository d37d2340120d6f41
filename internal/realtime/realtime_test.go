package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupHub(t *testing.T) *Hub {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHub(client, zerolog.Nop())
}

func TestPublishReachesWorkspaceSubscribers(t *testing.T) {
	hub := setupHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := hub.Subscribe(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	other, err := hub.Subscribe(ctx, "ws-2")
	if err != nil {
		t.Fatalf("Subscribe other: %v", err)
	}

	hub.Publish(ctx, Event{Type: "site.created", WorkspaceID: "ws-1", EntityType: "site", EntityID: "site-1"})

	select {
	case event := <-events:
		if event.Type != "site.created" || event.EntityID != "site-1" || event.At.IsZero() {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	select {
	case event := <-other:
		t.Fatalf("other workspace received %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	hub := setupHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := hub.Subscribe(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestPublishWithoutWorkspaceIsNoop(t *testing.T) {
	hub := setupHub(t)
	hub.Publish(context.Background(), Event{Type: "x"})
	var nilHub *Hub
	nilHub.Publish(context.Background(), Event{Type: "x", WorkspaceID: "ws"})
}
