package app

import (
	"context"
	"errors"
	"strings"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/store"
	"launchkit/api/internal/util"
)

type createWorkspaceForm struct {
	Name string `form:"name" validate:"required,max=80"`
}

func (s *Service) createWorkspace(ctx context.Context, c *call, form createWorkspaceForm) (any, error) {
	access := c.scope.RequireSession(ctx)
	if !access.Success {
		return nil, denied(access.Error)
	}
	userID := access.Data.UserID

	workspace, err := s.store.CreateWorkspaceWithOwner(ctx, form.Name, userID)
	if err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.WorkspaceCreate,
			ActorID:    userID,
			TargetID:   workspace.ID,
			TargetType: "workspace",
			Metadata:   map[string]any{"name": workspace.Name},
		},
		scopes: []cache.Scope{cache.Workspaces(userID)},
	})
	setCookie(c.w, ActiveWorkspaceCookie, workspace.ID, yearOfCookies, s.cfg.CookieSecure)
	return newWorkspaceView(workspace, string(rbac.RoleOwner), 0), nil
}

type updateWorkspaceForm struct {
	WorkspaceID string `form:"workspace_id" validate:"required,max=64"`
	Name        string `form:"name" validate:"required,max=80"`
}

func (s *Service) updateWorkspace(ctx context.Context, c *call, form updateWorkspaceForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	before, err := s.store.GetWorkspace(ctx, form.WorkspaceID)
	if err != nil {
		return nil, err
	}

	workspace, err := s.store.UpdateWorkspace(ctx, form.WorkspaceID, form.Name)
	if err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.WorkspaceUpdate,
			ActorID:    access.Data.Session.UserID,
			TargetID:   workspace.ID,
			TargetType: "workspace",
			Metadata:   map[string]any{"name": map[string]string{"from": before.Name, "to": workspace.Name}},
		},
		scopes: s.memberWorkspaceScopes(ctx, workspace.ID),
		event:  workspaceEvent("workspace.updated", workspace.ID, "workspace", workspace.ID),
	})
	return newWorkspaceView(workspace, string(access.Data.Role), 0), nil
}

type workspaceForm struct {
	WorkspaceID string `form:"workspace_id" validate:"required,max=64"`
}

func (s *Service) deleteWorkspace(ctx context.Context, c *call, form workspaceForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.OwnerOnly...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	workspace, err := s.store.GetWorkspace(ctx, form.WorkspaceID)
	if err != nil {
		return nil, err
	}
	scopes := s.memberWorkspaceScopes(ctx, workspace.ID)
	sites, err := s.store.ListSites(ctx, workspace.ID)
	if err != nil {
		return nil, err
	}
	var campaigns []store.Campaign
	for _, site := range sites {
		siteCampaigns, err := s.store.ListCampaigns(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, siteCampaigns...)
		scopes = append(scopes, cache.Site(site.ID), cache.CampaignsList(site.ID))
		scopes = append(scopes, s.publicScopes(site, slugsOf(siteCampaigns)...)...)
	}

	if err := s.store.DeleteWorkspace(ctx, workspace.ID); err != nil {
		return nil, err
	}

	scopes = append(scopes,
		cache.SitesList(workspace.ID),
		cache.Members(workspace.ID),
		cache.Invitations(workspace.ID),
	)
	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.WorkspaceDelete,
			ActorID:    access.Data.Session.UserID,
			TargetID:   workspace.ID,
			TargetType: "workspace",
			Metadata: map[string]any{
				"name":  workspace.Name,
				"sites": len(sites),
			},
		},
		scopes: scopes,
		event:  workspaceEvent("workspace.deleted", workspace.ID, "workspace", workspace.ID),
	})
	s.forgetCampaigns(campaigns)
	for _, site := range sites {
		s.search.DeleteSite(site.ID)
	}
	if cookie, err := c.r.Cookie(ActiveWorkspaceCookie); err == nil && cookie.Value == workspace.ID {
		setCookie(c.w, ActiveWorkspaceCookie, "", -1, s.cfg.CookieSecure)
	}
	return map[string]any{"id": workspace.ID}, nil
}

func (s *Service) switchWorkspace(ctx context.Context, c *call, form workspaceForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.AnyMember...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	setCookie(c.w, ActiveWorkspaceCookie, form.WorkspaceID, yearOfCookies, s.cfg.CookieSecure)
	return map[string]any{"workspaceId": form.WorkspaceID, "role": access.Data.Role}, nil
}

type updateMemberRoleForm struct {
	WorkspaceID string `form:"workspace_id" validate:"required,max=64"`
	UserID      string `form:"user_id" validate:"required,max=64"`
	Role        string `form:"role" validate:"required,oneof=admin member"`
}

func (s *Service) updateMemberRole(ctx context.Context, c *call, form updateMemberRoleForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.OwnerOnly...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	current, err := c.scope.GetMemberRole(ctx, form.WorkspaceID, form.UserID)
	if err != nil {
		return nil, err
	}
	if rbac.WorkspaceRole(current) == rbac.RoleOwner {
		return nil, fail(i18n.OwnerImmutable)
	}

	if err := s.store.UpdateMemberRole(ctx, form.WorkspaceID, form.UserID, form.Role); err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.MemberRoleUpdate,
			ActorID:    access.Data.Session.UserID,
			TargetID:   form.UserID,
			TargetType: "workspace_member",
			Metadata: map[string]any{
				"workspace_id": form.WorkspaceID,
				"from":         current,
				"to":           form.Role,
			},
		},
		scopes: []cache.Scope{cache.Members(form.WorkspaceID), cache.Workspaces(form.UserID)},
		event:  workspaceEvent("member.updated", form.WorkspaceID, "workspace_member", form.UserID),
	})
	return map[string]any{"userId": form.UserID, "role": form.Role}, nil
}

type removeMemberForm struct {
	WorkspaceID string `form:"workspace_id" validate:"required,max=64"`
	UserID      string `form:"user_id" validate:"required,max=64"`
}

// removeMember lets owners and admins remove others and any member leave.
// The owner can never be removed.
func (s *Service) removeMember(ctx context.Context, c *call, form removeMemberForm) (any, error) {
	required := rbac.OwnerOrAdmin
	if session, ok := c.scope.Session(ctx); ok && session.UserID == form.UserID {
		required = rbac.AnyMember
	}
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, required...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	current, err := c.scope.GetMemberRole(ctx, form.WorkspaceID, form.UserID)
	if err != nil {
		return nil, err
	}
	if rbac.WorkspaceRole(current) == rbac.RoleOwner {
		return nil, fail(i18n.OwnerImmutable)
	}

	if err := s.store.RemoveMember(ctx, form.WorkspaceID, form.UserID); err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.MemberRemove,
			ActorID:    access.Data.Session.UserID,
			TargetID:   form.UserID,
			TargetType: "workspace_member",
			Metadata: map[string]any{
				"workspace_id": form.WorkspaceID,
				"role":         current,
				"self":         form.UserID == access.Data.Session.UserID,
			},
		},
		scopes: []cache.Scope{cache.Members(form.WorkspaceID), cache.Workspaces(form.UserID)},
		event:  workspaceEvent("member.removed", form.WorkspaceID, "workspace_member", form.UserID),
	})
	return map[string]any{"userId": form.UserID}, nil
}

type inviteMemberForm struct {
	WorkspaceID string `form:"workspace_id" validate:"required,max=64"`
	Email       string `form:"email" validate:"required,email,max=254"`
	Role        string `form:"role" validate:"required,oneof=admin member"`
}

func (s *Service) inviteMember(ctx context.Context, c *call, form inviteMemberForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	token, err := util.NewToken(32)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(form.Email)

	invitation, err := s.store.CreateInvitation(ctx, form.WorkspaceID, email, form.Role, token, access.Data.Session.UserID)
	if err != nil {
		return nil, err
	}

	acceptURL := s.cfg.AppURL + "/invitations/" + token
	s.sendInvitation(ctx, c, invitation, access.Data.Session.DisplayName, acceptURL)

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.InvitationCreate,
			ActorID:    access.Data.Session.UserID,
			TargetID:   invitation.ID,
			TargetType: "invitation",
			Metadata: map[string]any{
				"workspace_id": form.WorkspaceID,
				"email":        email,
				"role":         form.Role,
			},
		},
		scopes: []cache.Scope{cache.Invitations(form.WorkspaceID)},
		event:  workspaceEvent("invitation.created", form.WorkspaceID, "invitation", invitation.ID),
	})

	view := map[string]any{"invitation": newInvitationView(invitation)}
	if !s.smtpConfigured() {
		view["acceptUrl"] = acceptURL
	}
	return view, nil
}

// sendInvitation mails the invitation. Delivery failures never fail the
// invite.
func (s *Service) sendInvitation(ctx context.Context, c *call, invitation store.Invitation, inviterName, acceptURL string) {
	if !s.smtpConfigured() {
		return
	}
	workspaceName := invitation.WorkspaceName
	if workspaceName == "" {
		if workspace, err := s.store.GetWorkspace(ctx, invitation.WorkspaceID); err == nil {
			workspaceName = workspace.Name
		}
	}
	if err := s.mailer.SendInvitation(c.locale.Locale(), invitation.Email, inviterName, workspaceName, acceptURL); err != nil {
		s.logger.Warn().Err(err).Str("invitation_id", invitation.ID).Msg("send invitation email")
	}
}

type revokeInvitationForm struct {
	WorkspaceID  string `form:"workspace_id" validate:"required,max=64"`
	InvitationID string `form:"invitation_id" validate:"required,max=64"`
}

func (s *Service) revokeInvitation(ctx context.Context, c *call, form revokeInvitationForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}

	err := s.store.DeleteInvitation(ctx, form.WorkspaceID, form.InvitationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(i18n.InvitationGone)
	}
	if err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.InvitationRevoke,
			ActorID:    access.Data.Session.UserID,
			TargetID:   form.InvitationID,
			TargetType: "invitation",
			Metadata:   map[string]any{"workspace_id": form.WorkspaceID},
		},
		scopes: []cache.Scope{cache.Invitations(form.WorkspaceID)},
		event:  workspaceEvent("invitation.revoked", form.WorkspaceID, "invitation", form.InvitationID),
	})
	return map[string]any{"id": form.InvitationID}, nil
}

type acceptInvitationForm struct {
	Token string `form:"token" validate:"required,max=128"`
}

func (s *Service) acceptInvitation(ctx context.Context, c *call, form acceptInvitationForm) (any, error) {
	access := c.scope.RequireSession(ctx)
	if !access.Success {
		return nil, denied(access.Error)
	}
	userID := access.Data.UserID

	invitation, err := s.store.GetInvitationByToken(ctx, form.Token)
	if errors.Is(err, store.ErrNotFound) || (err == nil && invitation.Status != store.InvitationPending) {
		return nil, fail(i18n.InvitationGone)
	}
	if err != nil {
		return nil, err
	}

	workspaceID, err := s.store.AcceptInvitation(ctx, form.Token, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(i18n.InvitationGone)
	}
	if err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.InvitationAccept,
			ActorID:    userID,
			TargetID:   invitation.ID,
			TargetType: "invitation",
			Metadata: map[string]any{
				"workspace_id": workspaceID,
				"role":         invitation.Role,
			},
		},
		scopes: []cache.Scope{
			cache.Members(workspaceID),
			cache.Invitations(workspaceID),
			cache.Workspaces(userID),
		},
		event: workspaceEvent("member.joined", workspaceID, "workspace_member", userID),
	})
	setCookie(c.w, ActiveWorkspaceCookie, workspaceID, yearOfCookies, s.cfg.CookieSecure)
	return map[string]any{"workspaceId": workspaceID, "role": invitation.Role}, nil
}

// memberWorkspaceScopes covers the workspace lists of every member.
func (s *Service) memberWorkspaceScopes(ctx context.Context, workspaceID string) []cache.Scope {
	members, err := s.store.ListMembers(ctx, workspaceID)
	if err != nil {
		s.logger.Warn().Err(err).Str("workspace_id", workspaceID).Msg("list members for invalidation")
		return nil
	}
	scopes := make([]cache.Scope, 0, len(members))
	for _, member := range members {
		scopes = append(scopes, cache.Workspaces(member.UserID))
	}
	return scopes
}

func workspaceEvent(eventType, workspaceID, entityType, entityID string) *realtime.Event {
	return &realtime.Event{
		Type:        eventType,
		WorkspaceID: workspaceID,
		EntityType:  entityType,
		EntityID:    entityID,
	}
}
