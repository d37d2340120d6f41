package store

import (
	"context"
	"encoding/json"
)

// GetDashboardLayout returns the saved widget layout, or an empty layout when
// the user never saved one.
func (s *PostgresStore) GetDashboardLayout(ctx context.Context, userID, workspaceID string) (DashboardLayout, error) {
	layout := DashboardLayout{UserID: userID, WorkspaceID: workspaceID, Widgets: json.RawMessage(`[]`)}
	var widgets []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT widgets, updated_at FROM dashboard_layouts WHERE user_id = $1 AND workspace_id = $2`, userID, workspaceID,
	).Scan(&widgets, &layout.UpdatedAt)
	if err = normalize(err); err == ErrNotFound {
		return layout, nil
	} else if err != nil {
		return DashboardLayout{}, wrap("lookup dashboard layout", err)
	}
	layout.Widgets = copyJSON(widgets)
	return layout, nil
}

func (s *PostgresStore) SaveDashboardLayout(ctx context.Context, userID, workspaceID string, widgets json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dashboard_layouts (user_id, workspace_id, widgets, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (user_id, workspace_id)
		DO UPDATE SET widgets = EXCLUDED.widgets, updated_at = NOW()`,
		userID, workspaceID, jsonOrDefault(widgets, `[]`),
	)
	return wrap("save dashboard layout", err)
}
