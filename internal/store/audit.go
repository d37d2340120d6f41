package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry AuditLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (action, actor_id, target_entity_id, target_entity_type, metadata, ip_address)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		entry.Action, nullString(entry.ActorID), entry.TargetEntityID, entry.TargetEntityType,
		jsonOrDefault(entry.Metadata, `{}`), entry.IPAddress,
	)
	return wrap("insert audit log", err)
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLogEntry, error) {
	var where []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("actor_id::text", filter.ActorID)
	add("target_entity_type", filter.TargetEntityType)
	add("target_entity_id", filter.TargetEntityID)
	add("action", filter.Action)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	query := `SELECT id, action, COALESCE(actor_id::text, ''), target_entity_id, target_entity_type, metadata, ip_address, created_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list audit logs", err)
	}
	defer rows.Close()

	var out []AuditLogEntry
	for rows.Next() {
		var entry AuditLogEntry
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.ActorID, &entry.TargetEntityID, &entry.TargetEntityType, &metadata, &entry.IPAddress, &entry.CreatedAt); err != nil {
			return nil, wrap("scan audit log", err)
		}
		entry.Metadata = json.RawMessage(copyJSON(metadata))
		out = append(out, entry)
	}
	return out, wrap("iterate audit logs", rows.Err())
}
