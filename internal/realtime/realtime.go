// Package realtime fans workspace change events out over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event describes one change inside a workspace.
type Event struct {
	Type        string    `json:"type"`
	WorkspaceID string    `json:"workspace_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	At          time.Time `json:"at"`
}

type Hub struct {
	client *redis.Client
	logger zerolog.Logger
	prefix string
}

func NewHub(client *redis.Client, logger zerolog.Logger) *Hub {
	return &Hub{client: client, logger: logger, prefix: "workspace-events:"}
}

func (h *Hub) channel(workspaceID string) string {
	return h.prefix + workspaceID
}

// Publish sends the event to current subscribers of its workspace. Failures
// are logged; delivery is at most once.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if h == nil || event.WorkspaceID == "" {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("encode realtime event")
		return
	}
	if err := h.client.Publish(context.WithoutCancel(ctx), h.channel(event.WorkspaceID), payload).Err(); err != nil {
		h.logger.Warn().Err(err).Str("workspace_id", event.WorkspaceID).Msg("publish realtime event failed")
	}
}

// Subscribe streams events for a workspace until ctx is done. The returned
// channel is closed when the subscription ends.
func (h *Hub) Subscribe(ctx context.Context, workspaceID string) (<-chan Event, error) {
	sub := h.client.Subscribe(ctx, h.channel(workspaceID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", workspaceID, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed realtime event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
