package store

import (
	"context"
	"time"
)

func (s *PostgresStore) InsertTelemetryEvent(ctx context.Context, event TelemetryEvent) error {
	source := event.Source
	if source == "" {
		source = "web"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO telemetry_events (event_type, source, user_id, workspace_id, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)`,
		event.EventType, source, nullString(event.UserID), nullString(event.WorkspaceID), jsonOrDefault(event.Metadata, `{}`),
	)
	return wrap("insert telemetry event", err)
}

// TelemetryCount is the number of events of one type since a point in time.
type TelemetryCount struct {
	EventType string
	Count     int64
}

func (s *PostgresStore) CountTelemetryEvents(ctx context.Context, since time.Time) ([]TelemetryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM telemetry_events
		WHERE created_at >= $1
		GROUP BY event_type
		ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return nil, wrap("count telemetry", err)
	}
	defer rows.Close()

	var out []TelemetryCount
	for rows.Next() {
		var item TelemetryCount
		if err := rows.Scan(&item.EventType, &item.Count); err != nil {
			return nil, wrap("scan telemetry count", err)
		}
		out = append(out, item)
	}
	return out, wrap("iterate telemetry counts", rows.Err())
}

func (s *PostgresStore) ListTelemetryEvents(ctx context.Context, eventType string, limit int) ([]TelemetryEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, source, COALESCE(user_id::text, ''), COALESCE(workspace_id::text, ''), metadata, created_at
		FROM telemetry_events
		WHERE $1 = '' OR event_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, eventType, limit)
	if err != nil {
		return nil, wrap("list telemetry", err)
	}
	defer rows.Close()

	var out []TelemetryEvent
	for rows.Next() {
		var event TelemetryEvent
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.EventType, &event.Source, &event.UserID, &event.WorkspaceID, &metadata, &event.CreatedAt); err != nil {
			return nil, wrap("scan telemetry event", err)
		}
		event.Metadata = copyJSON(metadata)
		out = append(out, event)
	}
	return out, wrap("iterate telemetry events", rows.Err())
}
