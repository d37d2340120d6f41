package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/auth"
	"launchkit/api/internal/store"
)

func workspaceMembers() []store.WorkspaceMember {
	return []store.WorkspaceMember{
		{WorkspaceID: "ws-1", UserID: ownerUser.ID, Role: "owner"},
		{WorkspaceID: "ws-1", UserID: memberUser.ID, Role: "member"},
	}
}

func collectAudits(entries *[]store.AuditLogEntry) func(context.Context, store.AuditLogEntry) error {
	return func(_ context.Context, entry store.AuditLogEntry) error {
		*entries = append(*entries, entry)
		return nil
	}
}

// listedSiteCount reads the user's workspace list and returns the site count
// shown for the only workspace.
func listedSiteCount(t *testing.T, svc *Service, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	rr := serve(svc, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Workspaces []workspaceView `json:"workspaces"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse workspaces: %v", err)
	}
	if len(body.Workspaces) != 1 {
		t.Fatalf("expected one workspace, got %+v", body.Workspaces)
	}
	return body.Workspaces[0].SiteCount
}

func TestSiteChangesRefreshEveryMembersWorkspaceList(t *testing.T) {
	siteCount := 0
	fs := &fakeStore{
		getMemberRoleFn: roleIn(map[string]string{ownerUser.ID: "owner", memberUser.ID: "member"}),
		getSiteFn:       func(context.Context, string) (store.Site, error) { return promoSite(), nil },
		listMembersFn: func(context.Context, string) ([]store.WorkspaceMember, error) {
			return workspaceMembers(), nil
		},
		listWorkspacesForUserFn: func(context.Context, string) ([]store.WorkspaceSummary, error) {
			return []store.WorkspaceSummary{{
				Workspace: store.Workspace{ID: "ws-1", Name: "Tienda", OwnerID: ownerUser.ID},
				Role:      "member",
				SiteCount: siteCount,
			}}, nil
		},
		createSiteFn: func(_ context.Context, workspaceID string, in store.SiteInput) (store.Site, error) {
			siteCount++
			return store.Site{ID: "site-1", WorkspaceID: workspaceID, Name: in.Name, Subdomain: in.Subdomain}, nil
		},
		deleteSiteFn: func(context.Context, string) error {
			siteCount--
			return nil
		},
	}
	svc := newTestService(t, fs)
	ownerToken := signedIn(t, svc, ownerUser)
	memberToken := signedIn(t, svc, memberUser)

	if got := listedSiteCount(t, svc, memberToken); got != 0 {
		t.Fatalf("expected 0 sites before create, got %d", got)
	}

	result := runAction(t, svc, actionRequest("create-site", ownerToken, url.Values{
		"workspace_id": {"ws-1"},
		"name":         {"Promo"},
		"subdomain":    {"promo"},
	}))
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if got := listedSiteCount(t, svc, memberToken); got != 1 {
		t.Fatalf("member sees %d sites after create, want 1", got)
	}

	result = runAction(t, svc, actionRequest("delete-site", ownerToken, url.Values{"site_id": {"site-1"}}))
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if got := listedSiteCount(t, svc, memberToken); got != 0 {
		t.Fatalf("member sees %d sites after delete, want 0", got)
	}
}

func TestOwnerMembershipIsImmutable(t *testing.T) {
	cases := []struct {
		name   string
		actor  store.User
		roles  map[string]string
		action string
		form   url.Values
	}{
		{
			name:   "owner cannot change own role",
			actor:  ownerUser,
			roles:  map[string]string{ownerUser.ID: "owner"},
			action: "update-member-role",
			form:   url.Values{"workspace_id": {"ws-1"}, "user_id": {ownerUser.ID}, "role": {"member"}},
		},
		{
			name:   "admin cannot remove owner",
			actor:  memberUser,
			roles:  map[string]string{ownerUser.ID: "owner", memberUser.ID: "admin"},
			action: "remove-member",
			form:   url.Values{"workspace_id": {"ws-1"}, "user_id": {ownerUser.ID}},
		},
		{
			name:   "owner cannot leave",
			actor:  ownerUser,
			roles:  map[string]string{ownerUser.ID: "owner"},
			action: "remove-member",
			form:   url.Values{"workspace_id": {"ws-1"}, "user_id": {ownerUser.ID}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var entries []store.AuditLogEntry
			fs := &fakeStore{
				getMemberRoleFn: roleIn(tc.roles),
				updateMemberRoleFn: func(context.Context, string, string, string) error {
					t.Fatal("owner role must not be updated")
					return nil
				},
				removeMemberFn: func(context.Context, string, string) error {
					t.Fatal("owner must not be removed")
					return nil
				},
				insertAuditLogFn: collectAudits(&entries),
			}
			svc := newTestService(t, fs)
			token := signedIn(t, svc, tc.actor)

			result := runAction(t, svc, actionRequest(tc.action, token, tc.form))

			if result.Success || result.Error != "El rol del propietario no se puede cambiar." {
				t.Errorf("unexpected result %+v", result)
			}
			if len(entries) != 0 {
				t.Errorf("expected no audit entry, got %+v", entries)
			}
		})
	}
}

func TestUpdateMemberRoleByOwner(t *testing.T) {
	var entries []store.AuditLogEntry
	var gotUser, gotRole string
	fs := &fakeStore{
		getMemberRoleFn: roleIn(map[string]string{ownerUser.ID: "owner", memberUser.ID: "member"}),
		updateMemberRoleFn: func(_ context.Context, _ string, userID, role string) error {
			gotUser, gotRole = userID, role
			return nil
		},
		insertAuditLogFn: collectAudits(&entries),
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, ownerUser)

	result := runAction(t, svc, actionRequest("update-member-role", token, url.Values{
		"workspace_id": {"ws-1"},
		"user_id":      {memberUser.ID},
		"role":         {"admin"},
	}))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if gotUser != memberUser.ID || gotRole != "admin" {
		t.Errorf("unexpected update %s -> %s", gotUser, gotRole)
	}
	if len(entries) != 1 || entries[0].Action != audit.MemberRoleUpdate || entries[0].TargetEntityID != memberUser.ID {
		t.Errorf("unexpected audit entries %+v", entries)
	}
}

func TestMemberCanLeaveWorkspace(t *testing.T) {
	var entries []store.AuditLogEntry
	removed := ""
	fs := &fakeStore{
		getMemberRoleFn: roleIn(map[string]string{memberUser.ID: "member"}),
		removeMemberFn: func(_ context.Context, _ string, userID string) error {
			removed = userID
			return nil
		},
		insertAuditLogFn: collectAudits(&entries),
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, memberUser)

	result := runAction(t, svc, actionRequest("remove-member", token, url.Values{
		"workspace_id": {"ws-1"},
		"user_id":      {memberUser.ID},
	}))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if removed != memberUser.ID {
		t.Errorf("expected %s removed, got %q", memberUser.ID, removed)
	}
	if len(entries) != 1 || entries[0].Action != audit.MemberRemove {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	var metadata map[string]any
	if err := json.Unmarshal(entries[0].Metadata, &metadata); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if metadata["self"] != true {
		t.Errorf("expected self removal in metadata, got %v", metadata)
	}
}

func TestMemberCannotRemoveOthers(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: roleIn(map[string]string{memberUser.ID: "member", "user-other": "member"}),
		removeMemberFn: func(context.Context, string, string) error {
			t.Fatal("member must not remove others")
			return nil
		},
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, memberUser)

	result := runAction(t, svc, actionRequest("remove-member", token, url.Values{
		"workspace_id": {"ws-1"},
		"user_id":      {"user-other"},
	}))

	if result.Success || result.Error != "No tienes permiso para realizar esta acción." {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestInviteMemberRoleMustBeAdminOrMember(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			t.Fatal("membership must not be checked for invalid input")
			return "", nil
		},
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, ownerUser)

	for _, role := range []string{"owner", "superuser", ""} {
		t.Run("role "+role, func(t *testing.T) {
			result := runAction(t, svc, actionRequest("invite-member", token, url.Values{
				"workspace_id": {"ws-1"},
				"email":        {"nueva@example.com"},
				"role":         {role},
			}))
			if result.Success || result.Error != "Datos inválidos." {
				t.Errorf("unexpected result %+v", result)
			}
		})
	}
}

func TestInviteMemberDuplicatePending(t *testing.T) {
	var entries []store.AuditLogEntry
	fs := &fakeStore{
		getMemberRoleFn: roleIn(map[string]string{ownerUser.ID: "owner"}),
		createInvitationFn: func(context.Context, string, string, string, string, string) (store.Invitation, error) {
			return store.Invitation{}, &store.ConflictError{Constraint: store.ConstraintPendingInvitation}
		},
		insertAuditLogFn: collectAudits(&entries),
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, ownerUser)

	result := runAction(t, svc, actionRequest("invite-member", token, url.Values{
		"workspace_id": {"ws-1"},
		"email":        {"nueva@example.com"},
		"role":         {"member"},
	}))

	if result.Success || result.Error != "Ya existe una invitación pendiente para este correo." {
		t.Errorf("unexpected result %+v", result)
	}
	if len(entries) != 0 {
		t.Errorf("expected no audit entry, got %+v", entries)
	}
}

func TestInviteMemberWithoutMailReturnsAcceptURL(t *testing.T) {
	var gotEmail string
	fs := &fakeStore{
		getMemberRoleFn: roleIn(map[string]string{ownerUser.ID: "owner"}),
		createInvitationFn: func(_ context.Context, workspaceID, email, role, token, invitedBy string) (store.Invitation, error) {
			gotEmail = email
			return store.Invitation{ID: "inv-1", WorkspaceID: workspaceID, Email: email, Role: role, Status: store.InvitationPending, Token: token, InvitedBy: invitedBy}, nil
		},
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, ownerUser)

	result := runAction(t, svc, actionRequest("invite-member", token, url.Values{
		"workspace_id": {"ws-1"},
		"email":        {"Nueva@Example.com"},
		"role":         {"admin"},
	}))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if gotEmail != "nueva@example.com" {
		t.Errorf("expected lowercased email, got %q", gotEmail)
	}
	data, _ := result.Data.(map[string]any)
	acceptURL, _ := data["acceptUrl"].(string)
	if !strings.HasPrefix(acceptURL, "http://"+testAppHost+"/invitations/") {
		t.Errorf("unexpected accept url %q", acceptURL)
	}
}

func TestAcceptInvitationFailures(t *testing.T) {
	pending := store.Invitation{ID: "inv-1", WorkspaceID: "ws-1", Email: "otra@example.com", Role: "member", Status: store.InvitationPending}
	accepted := pending
	accepted.Status = store.InvitationAccepted

	cases := []struct {
		name       string
		invitation func(context.Context, string) (store.Invitation, error)
		accept     func(context.Context, string, string) (string, error)
		want       string
	}{
		{
			name:       "other email",
			invitation: func(context.Context, string) (store.Invitation, error) { return pending, nil },
			accept:     func(context.Context, string, string) (string, error) { return "", store.ErrInvitationMismatch },
			want:       "Esta invitación fue enviada a otro correo.",
		},
		{
			name:       "already accepted",
			invitation: func(context.Context, string) (store.Invitation, error) { return accepted, nil },
			want:       "La invitación no existe o ya fue aceptada.",
		},
		{
			name:       "unknown token",
			invitation: func(context.Context, string) (store.Invitation, error) { return store.Invitation{}, store.ErrNotFound },
			want:       "La invitación no existe o ya fue aceptada.",
		},
		{
			name:       "accepted meanwhile",
			invitation: func(context.Context, string) (store.Invitation, error) { return pending, nil },
			accept:     func(context.Context, string, string) (string, error) { return "", store.ErrNotFound },
			want:       "La invitación no existe o ya fue aceptada.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var entries []store.AuditLogEntry
			fs := &fakeStore{
				getInvitationByTokenFn: tc.invitation,
				acceptInvitationFn:     tc.accept,
				insertAuditLogFn:       collectAudits(&entries),
			}
			if fs.acceptInvitationFn == nil {
				fs.acceptInvitationFn = func(context.Context, string, string) (string, error) {
					t.Fatal("an invitation that is not pending must not be accepted")
					return "", nil
				}
			}
			svc := newTestService(t, fs)
			token := signedIn(t, svc, memberUser)

			result := runAction(t, svc, actionRequest("accept-invitation", token, url.Values{"token": {"tok-1"}}))

			if result.Success || result.Error != tc.want {
				t.Errorf("unexpected result %+v", result)
			}
			if len(entries) != 0 {
				t.Errorf("expected no audit entry, got %+v", entries)
			}
		})
	}
}

func TestAcceptInvitationJoinsWorkspace(t *testing.T) {
	var entries []store.AuditLogEntry
	fs := &fakeStore{
		getInvitationByTokenFn: func(context.Context, string) (store.Invitation, error) {
			return store.Invitation{ID: "inv-1", WorkspaceID: "ws-1", Email: memberUser.Email, Role: "admin", Status: store.InvitationPending}, nil
		},
		acceptInvitationFn: func(_ context.Context, token, userID string) (string, error) {
			if token != "tok-1" || userID != memberUser.ID {
				t.Errorf("unexpected accept %s by %s", token, userID)
			}
			return "ws-1", nil
		},
		insertAuditLogFn: collectAudits(&entries),
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, memberUser)

	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, actionRequest("accept-invitation", token, url.Values{"token": {"tok-1"}}))

	var result ActionResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse action result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if len(entries) != 1 || entries[0].Action != audit.InvitationAccept || entries[0].ActorID != memberUser.ID {
		t.Errorf("unexpected audit entries %+v", entries)
	}
	var active bool
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == ActiveWorkspaceCookie && cookie.Value == "ws-1" {
			active = true
		}
	}
	if !active {
		t.Errorf("expected active workspace cookie, got %v", rr.Result().Cookies())
	}
}
