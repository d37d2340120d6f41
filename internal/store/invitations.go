package store

import (
	"context"
	"database/sql"
	"strings"
)

const invitationColumns = `i.id, i.workspace_id, w.name, i.email, i.role, i.status, i.token,
	COALESCE(i.invited_by::text, ''), i.created_at, i.accepted_at`

func scanInvitation(row rowScanner) (Invitation, error) {
	var inv Invitation
	var accepted sql.NullTime
	if err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.WorkspaceName, &inv.Email, &inv.Role, &inv.Status, &inv.Token, &inv.InvitedBy, &inv.CreatedAt, &accepted); err != nil {
		return Invitation{}, err
	}
	inv.AcceptedAt = nullTime(accepted)
	return inv, nil
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, workspaceID, email, role, token, invitedBy string) (Invitation, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invitations (workspace_id, email, role, token, invited_by)
		VALUES ($1, LOWER($2), $3, $4, $5)
		RETURNING id`,
		workspaceID, strings.TrimSpace(email), role, token, nullString(invitedBy),
	).Scan(&id)
	if err != nil {
		return Invitation{}, wrap("insert invitation", err)
	}
	return scanInvitationBy(ctx, s.db, `i.id = $1`, id)
}

func (s *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	return scanInvitationBy(ctx, s.db, `i.token = $1`, token)
}

func scanInvitationBy(ctx context.Context, db *sql.DB, where string, arg string) (Invitation, error) {
	inv, err := scanInvitation(db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i JOIN workspaces w ON w.id = i.workspace_id
		WHERE `+where, arg))
	if err != nil {
		return Invitation{}, wrap("lookup invitation", err)
	}
	return inv, nil
}

func (s *PostgresStore) ListInvitations(ctx context.Context, workspaceID string) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i JOIN workspaces w ON w.id = i.workspace_id
		WHERE i.workspace_id = $1 AND i.status = 'pending'
		ORDER BY i.created_at DESC`, workspaceID)
	if err != nil {
		return nil, wrap("list invitations", err)
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, wrap("scan invitation", err)
		}
		out = append(out, inv)
	}
	return out, wrap("iterate invitations", rows.Err())
}

func (s *PostgresStore) DeleteInvitation(ctx context.Context, workspaceID, invitationID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations WHERE id = $1 AND workspace_id = $2 AND status = 'pending'`, invitationID, workspaceID)
	if err != nil {
		return wrap("delete invitation", err)
	}
	return requireRow(res, "delete invitation")
}

// AcceptInvitation runs accept_workspace_invitation, which locks the row,
// checks the email match and inserts the membership in one transaction.
func (s *PostgresStore) AcceptInvitation(ctx context.Context, token, userID string) (string, error) {
	var workspaceID string
	if err := s.db.QueryRowContext(ctx, `SELECT accept_workspace_invitation($1, $2)`, token, userID).Scan(&workspaceID); err != nil {
		return "", wrap("accept invitation", err)
	}
	return workspaceID, nil
}
