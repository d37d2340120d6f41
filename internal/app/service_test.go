package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"launchkit/api/internal/auth"
	"launchkit/api/internal/authpw"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/config"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/revisions"
	"launchkit/api/internal/search"
	"launchkit/api/internal/session"
	"launchkit/api/internal/store"
)

// fakeStore implements the methods a test needs through fn fields. Calling
// any other dataStore method panics on the nil embedded interface.
type fakeStore struct {
	dataStore

	pingFn                  func(context.Context) error
	getUserByIDFn           func(context.Context, string) (store.User, error)
	getUserByEmailFn        func(context.Context, string) (store.User, error)
	getMemberRoleFn         func(context.Context, string, string) (string, error)
	getSiteFn               func(context.Context, string) (store.Site, error)
	getSiteByHostFn         func(context.Context, string, string) (store.Site, error)
	createSiteFn            func(context.Context, string, store.SiteInput) (store.Site, error)
	deleteSiteFn            func(context.Context, string) error
	subdomainExistsFn       func(context.Context, string, string) (bool, error)
	listCampaignsFn         func(context.Context, string) ([]store.Campaign, error)
	getCampaignFn           func(context.Context, string) (store.Campaign, error)
	getPublishedCampaignFn  func(context.Context, string, string) (store.Campaign, error)
	insertAuditLogFn        func(context.Context, store.AuditLogEntry) error
	listAuditLogsFn         func(context.Context, store.AuditLogFilter) ([]store.AuditLogEntry, error)
	insertTelemetryEventFn  func(context.Context, store.TelemetryEvent) error
	saveDashboardLayoutFn   func(context.Context, string, string, json.RawMessage) error
	listWorkspacesForUserFn func(context.Context, string) ([]store.WorkspaceSummary, error)
	listMembersFn           func(context.Context, string) ([]store.WorkspaceMember, error)
	updateMemberRoleFn      func(context.Context, string, string, string) error
	removeMemberFn          func(context.Context, string, string) error
	createInvitationFn      func(context.Context, string, string, string, string, string) (store.Invitation, error)
	getInvitationByTokenFn  func(context.Context, string) (store.Invitation, error)
	acceptInvitationFn      func(context.Context, string, string) (string, error)
	setCampaignStatusFn     func(context.Context, string, string) (store.Campaign, error)
	updateCampaignContentFn func(context.Context, string, string, string, json.RawMessage) (store.Campaign, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetMemberRole(ctx context.Context, workspaceID, userID string) (string, error) {
	if f.getMemberRoleFn != nil {
		return f.getMemberRoleFn(ctx, workspaceID, userID)
	}
	return "", store.ErrNotFound
}

func (f *fakeStore) GetSite(ctx context.Context, siteID string) (store.Site, error) {
	if f.getSiteFn != nil {
		return f.getSiteFn(ctx, siteID)
	}
	return store.Site{}, store.ErrNotFound
}

func (f *fakeStore) GetSiteByHost(ctx context.Context, host, rootDomain string) (store.Site, error) {
	if f.getSiteByHostFn != nil {
		return f.getSiteByHostFn(ctx, host, rootDomain)
	}
	return store.Site{}, store.ErrNotFound
}

func (f *fakeStore) CreateSite(ctx context.Context, workspaceID string, in store.SiteInput) (store.Site, error) {
	if f.createSiteFn != nil {
		return f.createSiteFn(ctx, workspaceID, in)
	}
	return store.Site{ID: "site-new", WorkspaceID: workspaceID, Name: in.Name, Subdomain: in.Subdomain}, nil
}

func (f *fakeStore) DeleteSite(ctx context.Context, siteID string) error {
	if f.deleteSiteFn != nil {
		return f.deleteSiteFn(ctx, siteID)
	}
	return nil
}

func (f *fakeStore) SubdomainExists(ctx context.Context, sub, exceptSiteID string) (bool, error) {
	if f.subdomainExistsFn != nil {
		return f.subdomainExistsFn(ctx, sub, exceptSiteID)
	}
	return false, nil
}

func (f *fakeStore) ListCampaigns(ctx context.Context, siteID string) ([]store.Campaign, error) {
	if f.listCampaignsFn != nil {
		return f.listCampaignsFn(ctx, siteID)
	}
	return nil, nil
}

func (f *fakeStore) GetCampaign(ctx context.Context, campaignID string) (store.Campaign, error) {
	if f.getCampaignFn != nil {
		return f.getCampaignFn(ctx, campaignID)
	}
	return store.Campaign{}, store.ErrNotFound
}

func (f *fakeStore) GetPublishedCampaign(ctx context.Context, siteID, slug string) (store.Campaign, error) {
	if f.getPublishedCampaignFn != nil {
		return f.getPublishedCampaignFn(ctx, siteID, slug)
	}
	return store.Campaign{}, store.ErrNotFound
}

func (f *fakeStore) InsertAuditLog(ctx context.Context, entry store.AuditLogEntry) error {
	if f.insertAuditLogFn != nil {
		return f.insertAuditLogFn(ctx, entry)
	}
	return nil
}

func (f *fakeStore) ListAuditLogs(ctx context.Context, filter store.AuditLogFilter) ([]store.AuditLogEntry, error) {
	if f.listAuditLogsFn != nil {
		return f.listAuditLogsFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeStore) InsertTelemetryEvent(ctx context.Context, event store.TelemetryEvent) error {
	if f.insertTelemetryEventFn != nil {
		return f.insertTelemetryEventFn(ctx, event)
	}
	return nil
}

func (f *fakeStore) SaveDashboardLayout(ctx context.Context, userID, workspaceID string, widgets json.RawMessage) error {
	if f.saveDashboardLayoutFn != nil {
		return f.saveDashboardLayoutFn(ctx, userID, workspaceID, widgets)
	}
	return nil
}

func (f *fakeStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]store.WorkspaceSummary, error) {
	if f.listWorkspacesForUserFn != nil {
		return f.listWorkspacesForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) ListMembers(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, error) {
	if f.listMembersFn != nil {
		return f.listMembersFn(ctx, workspaceID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	if f.updateMemberRoleFn != nil {
		return f.updateMemberRoleFn(ctx, workspaceID, userID, role)
	}
	return nil
}

func (f *fakeStore) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	if f.removeMemberFn != nil {
		return f.removeMemberFn(ctx, workspaceID, userID)
	}
	return nil
}

func (f *fakeStore) CreateInvitation(ctx context.Context, workspaceID, email, role, token, invitedBy string) (store.Invitation, error) {
	if f.createInvitationFn != nil {
		return f.createInvitationFn(ctx, workspaceID, email, role, token, invitedBy)
	}
	return store.Invitation{
		ID:          "inv-new",
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Status:      store.InvitationPending,
		Token:       token,
		InvitedBy:   invitedBy,
	}, nil
}

func (f *fakeStore) GetInvitationByToken(ctx context.Context, token string) (store.Invitation, error) {
	if f.getInvitationByTokenFn != nil {
		return f.getInvitationByTokenFn(ctx, token)
	}
	return store.Invitation{}, store.ErrNotFound
}

func (f *fakeStore) AcceptInvitation(ctx context.Context, token, userID string) (string, error) {
	if f.acceptInvitationFn != nil {
		return f.acceptInvitationFn(ctx, token, userID)
	}
	return "", store.ErrNotFound
}

func (f *fakeStore) SetCampaignStatus(ctx context.Context, campaignID, status string) (store.Campaign, error) {
	if f.setCampaignStatusFn != nil {
		return f.setCampaignStatusFn(ctx, campaignID, status)
	}
	return store.Campaign{}, store.ErrNotFound
}

func (f *fakeStore) UpdateCampaignContent(ctx context.Context, campaignID, name, slug string, content json.RawMessage) (store.Campaign, error) {
	if f.updateCampaignContentFn != nil {
		return f.updateCampaignContentFn(ctx, campaignID, name, slug, content)
	}
	return store.Campaign{}, store.ErrNotFound
}

const (
	testAppHost    = "example.com"
	testRootDomain = "sites.test"
)

func newTestService(t *testing.T, fs *fakeStore) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	svc := &Service{
		cfg: config.Config{
			AppHost:                testAppHost,
			AppURL:                 "http://" + testAppHost,
			RootDomain:             testRootDomain,
			SessionSecret:          "test-secret",
			SessionTTL:             time.Hour,
			AuthRatePerMinute:      1000,
			AuthRateBurst:          1000,
			TelemetryRatePerMinute: 1000,
			TelemetryRateBurst:     1000,
		},
		store:     fs,
		sessions:  session.NewRedisStore(client),
		cache:     cache.New(client, zerolog.Nop()),
		hub:       realtime.NewHub(client, zerolog.Nop()),
		search:    search.NewService(nil, nil, zerolog.Nop()),
		revisions: revisions.New(t.TempDir()),
		passwords: authpw.NewService(fs).WithCost(bcrypt.MinCost),
		policy:    policy,
		logger:    zerolog.Nop(),
	}
	svc.wire()
	return svc
}

// signedIn starts a real session for user and returns its token.
func signedIn(t *testing.T, svc *Service, user store.User) string {
	t.Helper()
	token, err := svc.startSession(context.Background(), user)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return token
}

var (
	ownerUser  = store.User{ID: "user-owner", Email: "owner@example.com", DisplayName: "Olga", AppRole: "user", IsEmailVerified: true}
	memberUser = store.User{ID: "user-member", Email: "member@example.com", DisplayName: "Mateo", AppRole: "user", IsEmailVerified: true}
)

func actionRequest(name, token string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/actions/"+name, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept-Language", "es")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	return req
}

func runAction(t *testing.T, svc *Service, req *http.Request) ActionResult {
	t.Helper()
	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result ActionResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse action result: %v", err)
	}
	return result
}

func roleIn(roles map[string]string) func(context.Context, string, string) (string, error) {
	return func(_ context.Context, _ string, userID string) (string, error) {
		if role, ok := roles[userID]; ok {
			return role, nil
		}
		return "", store.ErrNotFound
	}
}
