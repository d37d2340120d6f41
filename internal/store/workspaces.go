package store

import (
	"context"
)

// CreateWorkspaceWithOwner creates the workspace and its owner membership in
// one database call.
func (s *PostgresStore) CreateWorkspaceWithOwner(ctx context.Context, name, ownerID string) (Workspace, error) {
	var workspaceID string
	if err := s.db.QueryRowContext(ctx, `SELECT create_workspace_with_owner($1, $2)`, name, ownerID).Scan(&workspaceID); err != nil {
		return Workspace{}, wrap("create workspace", err)
	}
	return s.GetWorkspace(ctx, workspaceID)
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at FROM workspaces WHERE id = $1`, workspaceID,
	).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return Workspace{}, wrap("lookup workspace", err)
	}
	return ws, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		UPDATE workspaces SET name = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, name, owner_id, created_at, updated_at`, workspaceID, name,
	).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return Workspace{}, wrap("update workspace", err)
	}
	return ws, nil
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, workspaceID)
	if err != nil {
		return wrap("delete workspace", err)
	}
	return requireRow(res, "delete workspace")
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]WorkspaceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.owner_id, w.created_at, w.updated_at, m.role,
			(SELECT COUNT(*) FROM sites s WHERE s.workspace_id = w.id)
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at ASC`, userID)
	if err != nil {
		return nil, wrap("list workspaces", err)
	}
	defer rows.Close()

	var out []WorkspaceSummary
	for rows.Next() {
		var item WorkspaceSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt, &item.Role, &item.SiteCount); err != nil {
			return nil, wrap("scan workspace", err)
		}
		out = append(out, item)
	}
	return out, wrap("iterate workspaces", rows.Err())
}

// GetMemberRole returns the caller's role in the workspace or ErrNotFound when
// no membership row exists.
func (s *PostgresStore) GetMemberRole(ctx context.Context, workspaceID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID,
	).Scan(&role)
	if err != nil {
		return "", wrap("lookup membership", err)
	}
	return role, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.workspace_id, m.user_id, m.role, u.email, u.display_name, m.created_at
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.created_at ASC`, workspaceID)
	if err != nil {
		return nil, wrap("list members", err)
	}
	defer rows.Close()

	var out []WorkspaceMember
	for rows.Next() {
		var member WorkspaceMember
		if err := rows.Scan(&member.WorkspaceID, &member.UserID, &member.Role, &member.UserEmail, &member.UserName, &member.CreatedAt); err != nil {
			return nil, wrap("scan member", err)
		}
		out = append(out, member)
	}
	return out, wrap("iterate members", rows.Err())
}

// UpdateMemberRole changes a non-owner member's role. Owner rows are never
// rewritten and report ErrNotFound.
func (s *PostgresStore) UpdateMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workspace_members SET role = $3
		WHERE workspace_id = $1 AND user_id = $2 AND role <> 'owner'`, workspaceID, userID, role)
	if err != nil {
		return wrap("update member role", err)
	}
	return requireRow(res, "update member role")
}

func (s *PostgresStore) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2 AND role <> 'owner'`, workspaceID, userID)
	if err != nil {
		return wrap("remove member", err)
	}
	return requireRow(res, "remove member")
}
