// Package rbac holds the workspace and application role checks.
package rbac

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"launchkit/api/internal/store"
)

type WorkspaceRole string
type AppRole string

const (
	RoleOwner  WorkspaceRole = "owner"
	RoleAdmin  WorkspaceRole = "admin"
	RoleMember WorkspaceRole = "member"
)

const (
	AppUser      AppRole = "user"
	AppAdmin     AppRole = "admin"
	AppDeveloper AppRole = "developer"
)

// Common required-role sets.
var (
	AnyMember     = []WorkspaceRole{RoleOwner, RoleAdmin, RoleMember}
	OwnerOrAdmin  = []WorkspaceRole{RoleOwner, RoleAdmin}
	OwnerOnly     = []WorkspaceRole{RoleOwner}
	InvitableRole = []WorkspaceRole{RoleAdmin, RoleMember}
)

// MembershipStore looks up a user's role in a workspace. It returns
// store.ErrNotFound when the user is not a member.
type MembershipStore interface {
	GetMemberRole(ctx context.Context, workspaceID, userID string) (string, error)
}

// HasWorkspacePermission reports whether the user holds one of the required
// roles in the workspace. A missing membership is a plain false. Any other
// lookup failure is logged and also reported as false.
func HasWorkspacePermission(ctx context.Context, members MembershipStore, logger zerolog.Logger, userID, workspaceID string, required ...WorkspaceRole) bool {
	if userID == "" || workspaceID == "" {
		return false
	}
	role, err := members.GetMemberRole(ctx, workspaceID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		logger.Error().Err(err).
			Str("actor_id", userID).
			Str("workspace_id", workspaceID).
			Msg("workspace permission lookup failed")
		return false
	}
	return hasRole(WorkspaceRole(role), required)
}

func hasRole(role WorkspaceRole, required []WorkspaceRole) bool {
	for _, candidate := range required {
		if role == candidate {
			return true
		}
	}
	return false
}

// HasAppRole reports whether role is one of required.
func HasAppRole(role string, required ...AppRole) bool {
	for _, candidate := range required {
		if AppRole(role) == candidate {
			return true
		}
	}
	return false
}

func NormalizeWorkspaceRole(role string) (WorkspaceRole, bool) {
	switch WorkspaceRole(role) {
	case RoleOwner, RoleAdmin, RoleMember:
		return WorkspaceRole(role), true
	default:
		return "", false
	}
}

func NormalizeAppRole(role string) AppRole {
	switch AppRole(role) {
	case AppAdmin, AppDeveloper:
		return AppRole(role)
	default:
		return AppUser
	}
}
